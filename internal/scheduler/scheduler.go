// Package scheduler runs the recurring background pipeline: feed crawling,
// summary backfill, index rebuilds, and recommendation precompute.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Dreaming-Lion/Veritas/internal/config"
	"github.com/Dreaming-Lion/Veritas/internal/ingest"
	"github.com/Dreaming-Lion/Veritas/internal/recommend"
	"github.com/Dreaming-Lion/Veritas/internal/summarize"
)

const (
	crawlJobTimeout   = 2 * time.Hour
	refreshJobTimeout = 25 * time.Minute
)

type crawler interface {
	CrawlAll(ctx context.Context, filter []string) *ingest.Report
}

type summarizer interface {
	UpdateMissing(ctx context.Context, limit int, force bool) (summarize.BatchResult, error)
}

type reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

type precomputer interface {
	PrecomputeRecent(ctx context.Context, p recommend.Params, lookbackHours, maxItems int) (recommend.PrecomputeStats, error)
}

type warmer interface {
	Warmup(ctx context.Context)
}

// Deps are the pipeline stages the scheduler drives.
type Deps struct {
	Ingest     crawler
	Summarizer summarizer
	Indexer    reindexer
	Reco       precomputer
	NLI        warmer
}

// job serializes one recurring task. A trigger arriving while the task runs
// queues exactly one follow-up run instead of overlapping or piling up.
type job struct {
	name string
	fn   func(ctx context.Context)

	mu      sync.Mutex
	running bool
	pending bool
}

// trigger runs the job now, or marks a follow-up if it is already running.
func (j *job) trigger(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.pending = true
		j.mu.Unlock()
		slog.Info("sched: run already in progress, queued follow-up", "job", j.name)
		return
	}
	j.running = true
	j.mu.Unlock()

	for {
		runID := uuid.NewString()
		start := time.Now()
		slog.Info("sched: job start", "job", j.name, "run_id", runID)
		j.fn(ctx)
		slog.Info("sched: job done", "job", j.name, "run_id", runID, "elapsed", time.Since(start).Round(time.Millisecond))

		j.mu.Lock()
		if !j.pending || ctx.Err() != nil {
			j.running = false
			j.mu.Unlock()
			return
		}
		j.pending = false
		j.mu.Unlock()
	}
}

// Scheduler owns the cron entries and in-flight job tracking.
type Scheduler struct {
	cfg     config.Config
	deps    Deps
	cron    *cron.Cron
	crawl   *job
	refresh *job
	wg      sync.WaitGroup
}

// New builds a scheduler around the given pipeline stages.
func New(cfg config.Config, deps Deps) *Scheduler {
	s := &Scheduler{
		cfg:  cfg,
		deps: deps,
		cron: cron.New(),
	}
	s.crawl = &job{name: "crawl_all", fn: s.runCrawl}
	s.refresh = &job{name: "reco_refresh", fn: s.runRefresh}
	return s
}

// Start registers the cron entries and kicks off the bootstrap tasks.
// Jobs inherit ctx, so cancelling it stops in-flight work.
func (s *Scheduler) Start(ctx context.Context) error {
	every := func(min int) string {
		if min < 1 {
			min = 1
		}
		return "@every " + time.Duration(min*int(time.Minute)).String()
	}

	if _, err := s.cron.AddFunc(every(s.cfg.Scheduler.CrawlEveryMin), func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.crawl.trigger(ctx)
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(every(s.cfg.Scheduler.RefreshEveryMin), func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.refresh.trigger(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("sched: cron started",
		"crawl_every_min", s.cfg.Scheduler.CrawlEveryMin,
		"refresh_every_min", s.cfg.Scheduler.RefreshEveryMin)

	// Warm the NLI sidecar right away so the first request doesn't pay the
	// model load.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return
		}
		s.deps.NLI.Warmup(ctx)
	}()

	// Bootstrap shortly after startup so a fresh deployment has data.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return
		}
		s.runBootstrap(ctx)
	}()

	return nil
}

// TriggerCrawl runs the crawl pipeline outside the cron cadence, for the
// admin endpoint. Non-blocking.
func (s *Scheduler) TriggerCrawl(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.crawl.trigger(ctx)
	}()
}

// Stop halts the cron entries and waits for in-flight jobs, bounded by the
// given timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(timeout):
		slog.Warn("sched: cron stop timed out")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("sched: all jobs complete")
	case <-time.After(timeout):
		slog.Warn("sched: timed out waiting for in-flight jobs")
	}
}

// runCrawl is the full pipeline: crawl feeds, backfill summaries, rebuild
// the vector index, then precompute recommendations for recent articles.
func (s *Scheduler) runCrawl(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, crawlJobTimeout)
	defer cancel()

	s.deps.Ingest.CrawlAll(jobCtx, nil)
	if jobCtx.Err() != nil {
		return
	}

	batch, err := s.deps.Summarizer.UpdateMissing(jobCtx, s.cfg.Summary.BatchLimit, false)
	if err != nil {
		slog.Warn("sched: summary backfill failed", "error", err)
	} else if !batch.Skipped {
		slog.Info("sched: summary backfill", "updated", batch.Updated, "total", batch.Total)
	}
	if jobCtx.Err() != nil {
		return
	}

	// Reindex every cycle, even when the crawl landed nothing: the summary
	// backfill above may have changed index payloads, and an empty or wiped
	// collection gets rebuilt without waiting for feed content to change.
	n, err := s.deps.Indexer.Reindex(jobCtx)
	if err != nil {
		slog.Warn("sched: reindex failed", "error", err)
	} else {
		slog.Info("sched: reindex complete", "points", n)
	}
	if jobCtx.Err() != nil {
		return
	}

	stats, err := s.deps.Reco.PrecomputeRecent(jobCtx, s.recoParams(), 24, 400)
	if err != nil {
		slog.Warn("sched: precompute failed", "error", err)
	} else {
		slog.Info("sched: precompute complete", "scanned", stats.Scanned, "cached", stats.Cached)
	}
}

// runRefresh re-warms recommendation caches over a wider window than the
// crawl job covers.
func (s *Scheduler) runRefresh(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, refreshJobTimeout)
	defer cancel()

	stats, err := s.deps.Reco.PrecomputeRecent(jobCtx, s.recoParams(), 72, 600)
	if err != nil {
		slog.Warn("sched: refresh precompute failed", "error", err)
		return
	}
	slog.Info("sched: refresh precompute complete", "scanned", stats.Scanned, "cached", stats.Cached)
}

// runBootstrap seeds a fresh deployment: an optional full crawl pipeline,
// then a deep precompute over the bootstrap lookback.
func (s *Scheduler) runBootstrap(ctx context.Context) {
	runID := uuid.NewString()
	slog.Info("sched: bootstrap start", "run_id", runID, "crawl", s.cfg.Scheduler.BootstrapCrawl)

	if s.cfg.Scheduler.BootstrapCrawl {
		s.crawl.trigger(ctx)
		if ctx.Err() != nil {
			return
		}
	}

	stats, err := s.deps.Reco.PrecomputeRecent(ctx, s.recoParams(),
		s.cfg.Scheduler.BootstrapLookback, s.cfg.Scheduler.BootstrapMaxItems)
	if err != nil {
		slog.Warn("sched: bootstrap precompute failed", "run_id", runID, "error", err)
		return
	}
	slog.Info("sched: bootstrap done", "run_id", runID, "scanned", stats.Scanned, "cached", stats.Cached)
}

func (s *Scheduler) recoParams() recommend.Params {
	return recommend.Params{
		HoursWindow:     s.cfg.Recommend.HoursWindow,
		TopK:            s.cfg.Recommend.TopK,
		StanceThreshold: s.cfg.Recommend.StanceThreshold,
	}
}
