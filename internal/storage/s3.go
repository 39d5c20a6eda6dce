// Package storage provides S3-compatible object storage for raw crawled
// pages, so an article's original HTML survives later site changes.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Dreaming-Lion/Veritas/internal/config"
)

// Client wraps an S3-compatible object storage client.
type Client struct {
	s3     *s3.Client
	bucket string
}

// PageMeta records metadata about a stored page capture.
type PageMeta struct {
	ArticleID  int64     `json:"article_id"`
	CapturedAt time.Time `json:"captured_at"`
	PageHash   string    `json:"page_hash_sha256"`
}

// NewClient creates an S3-compatible storage client. With no endpoint
// configured the client is a no-op and archiving is disabled.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("S3 endpoint not configured, page archive disabled")
		return &Client{bucket: cfg.Bucket}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
	}, nil
}

// Configured returns true if the S3 client has a valid connection configured.
// Safe on a nil receiver so callers can pass an absent client through.
func (c *Client) Configured() bool {
	return c != nil && c.s3 != nil
}

// StorePage compresses and uploads the raw HTML of a crawled article page
// together with a small capture metadata object.
func (c *Client) StorePage(ctx context.Context, articleID int64, page []byte) error {
	if c.s3 == nil {
		return nil
	}

	prefix := fmt.Sprintf("pages/%d", articleID)

	meta := PageMeta{
		ArticleID:  articleID,
		CapturedAt: time.Now().UTC(),
		PageHash:   sha256sum(page),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal meta: %w", err)
	}

	compressed, err := gzipCompress(page)
	if err != nil {
		return fmt.Errorf("storage: compress page: %w", err)
	}

	uploads := map[string][]byte{
		prefix + "/raw.html.gz":       compressed,
		prefix + "/capture_meta.json": metaJSON,
	}
	for key, body := range uploads {
		_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &c.bucket,
			Key:    &key,
			Body:   bytes.NewReader(body),
		})
		if err != nil {
			return fmt.Errorf("storage: upload %s: %w", key, err)
		}
		slog.Debug("page archived", "key", key, "size", len(body))
	}
	return nil
}

// GetPage retrieves the raw HTML stored for an article.
func (c *Client) GetPage(ctx context.Context, articleID int64) ([]byte, *PageMeta, error) {
	if c.s3 == nil {
		return nil, nil, fmt.Errorf("storage: not configured")
	}

	prefix := fmt.Sprintf("pages/%d", articleID)

	rawData, err := c.getObject(ctx, prefix+"/raw.html.gz")
	if err != nil {
		return nil, nil, err
	}
	page, err := gzipDecompress(rawData)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: decompress page: %w", err)
	}

	metaData, err := c.getObject(ctx, prefix+"/capture_meta.json")
	if err != nil {
		return nil, nil, err
	}
	var meta PageMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("storage: unmarshal meta: %w", err)
	}
	return page, &meta, nil
}

// DeletePage removes the stored artifacts for an article.
func (c *Client) DeletePage(ctx context.Context, articleID int64) error {
	if c.s3 == nil {
		return nil
	}

	prefix := fmt.Sprintf("pages/%d", articleID)
	for _, suffix := range []string{"/raw.html.gz", "/capture_meta.json"} {
		key := prefix + suffix
		_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &c.bucket,
			Key:    &key,
		})
		if err != nil {
			// The object may simply not exist.
			slog.Debug("page delete (may not exist)", "key", key, "err", err)
		}
	}
	return nil
}

func (c *Client) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
