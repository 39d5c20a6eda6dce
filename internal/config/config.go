// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds the full application configuration.
type Config struct {
	DB         DBConfig
	Server     ServerConfig
	Qdrant     QdrantConfig
	NLI        NLIConfig
	Ollama     OllamaConfig
	S3         S3Config
	Summary    SummaryConfig
	Recommend  RecommendConfig
	Scheduler  SchedulerConfig
	Vectorizer VectorizerConfig
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	DBName  string
	SSLMode string
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// QdrantConfig holds the Qdrant vector store parameters.
type QdrantConfig struct {
	BaseURL    string
	Collection string
}

// NLIConfig holds the NLI inference sidecar parameters.
type NLIConfig struct {
	BaseURL string
	// MaxPairChars is the combined character budget for a premise/hypothesis
	// pair sent to the model server.
	MaxPairChars int
}

// OllamaConfig holds the optional Ollama server used for abstractive
// summaries. An empty Host disables the abstractive backend and the
// summarizer runs extractive-only.
type OllamaConfig struct {
	Host          string
	InstructModel string
}

// S3Config holds the optional S3-compatible page-archive parameters.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// SummaryConfig holds summarizer parameters.
type SummaryConfig struct {
	MaxSentences int
	MaxChars     int // 0 disables the character cap
	BatchLimit   int // rows per UpdateMissing call
}

// RecommendConfig holds recommendation defaults and the cache TTL.
type RecommendConfig struct {
	CacheTTLHours   int
	HoursWindow     int
	TopK            int
	StanceThreshold float64
}

// SchedulerConfig holds background job intervals and bootstrap parameters.
type SchedulerConfig struct {
	CrawlEveryMin     int
	RefreshEveryMin   int
	BootstrapCrawl    bool
	BootstrapLookback int // hours
	BootstrapMaxItems int
}

// VectorizerConfig holds the TF-IDF artifact location.
type VectorizerConfig struct {
	Path string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DB: DBConfig{
			Host:    envOr("DB_HOST", "localhost"),
			Port:    envOrInt("DB_PORT", 5432),
			User:    envOr("DB_USER", "appuser"),
			Pass:    envOr("DB_PASS", "apppw"),
			DBName:  envOr("DB_NAME", "appdb"),
			SSLMode: envOr("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: envOr("SERVER_PORT", ":8080"),
			Host: envOr("SERVER_HOST", ""),
		},
		Qdrant: QdrantConfig{
			BaseURL:    envOr("QDRANT_URL", "http://localhost:6333"),
			Collection: envOr("QDRANT_COLLECTION", "news_tfidf"),
		},
		NLI: NLIConfig{
			BaseURL:      envOr("NLI_URL", "http://localhost:9090"),
			MaxPairChars: envOrInt("NLI_MAX_PAIR_CHARS", 1200),
		},
		Ollama: OllamaConfig{
			Host:          envOr("OLLAMA_HOST", ""),
			InstructModel: envOr("OLLAMA_INSTRUCT_MODEL", "llama3"),
		},
		S3: S3Config{
			Endpoint:  envOr("S3_ENDPOINT", ""),
			Bucket:    envOr("S3_BUCKET", "veritas-pages"),
			AccessKey: envOr("S3_ACCESS_KEY", ""),
			SecretKey: envOr("S3_SECRET_KEY", ""),
			Region:    envOr("S3_REGION", "ap-northeast-2"),
		},
		Summary: SummaryConfig{
			MaxSentences: envOrInt("SUMMARY_MAX_SENTENCES", 3),
			MaxChars:     envOrInt("SUMMARY_MAX_CHARS", 0),
			BatchLimit:   envOrInt("SUMMARY_LIMIT_AFTER_CRAWL", 1000),
		},
		Recommend: RecommendConfig{
			CacheTTLHours:   envOrInt("RECO_CACHE_TTL_HOURS", 6),
			HoursWindow:     envOrInt("RECO_HOURS_WINDOW", 48),
			TopK:            envOrInt("RECO_TOP_K", 8),
			StanceThreshold: envOrFloat("RECO_NLI_THRESHOLD", 0.1),
		},
		Scheduler: SchedulerConfig{
			CrawlEveryMin:     envOrInt("SCHED_CRAWL_EVERY_MIN", 180),
			RefreshEveryMin:   envOrInt("SCHED_REFRESH_EVERY_MIN", 30),
			BootstrapCrawl:    envOrBool("BOOTSTRAP_DO_CRAWL", true),
			BootstrapLookback: envOrInt("BOOTSTRAP_LOOKBACK_H", 720),
			BootstrapMaxItems: envOrInt("BOOTSTRAP_MAX_ITEMS", 1000),
		},
		Vectorizer: VectorizerConfig{
			Path: envOr("VECTORIZER_PATH", "models/tfidf_news.json"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
