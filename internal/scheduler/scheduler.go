package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/archive"
	"github.com/rohmanhakim/wayback-robots/internal/config"
	"github.com/rohmanhakim/wayback-robots/internal/fetcher"
	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/internal/pathset"
	"github.com/rohmanhakim/wayback-robots/internal/robots"
	"github.com/rohmanhakim/wayback-robots/internal/robots/cache"
	"github.com/rohmanhakim/wayback-robots/internal/storage"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/limiter"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
	"github.com/rohmanhakim/wayback-robots/pkg/timeutil"
)

/*
 Scheduler is the sole control-plane authority of a run.

 - Stages (lister, extractor, sink) detect and classify failures. Only the
   scheduler decides whether the run continues or stops.
 - A failed listing or a failed snapshot fetch never stops the run: it is
   logged and counts as an empty result.
 - Only a failed write or a cancelled context ends the run with an error.
 - Every archive request is paced through the rate limiter, keyed by the
   archive host.

 Metadata emission is observational only and MUST NOT influence
 pacing or termination.
*/

type Scheduler struct {
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	metrics        metricsWriter
	logger         *log.Logger
	lister         archive.Lister
	extractor      robots.Extractor
	storageSink    storage.Sink
	rateLimiter    limiter.RateLimiter
	sleep          func(ctx context.Context, d time.Duration) error
	closers        []io.Closer
	cfg            config.Config
}

// NewScheduler wires the production pipeline for cfg.
func NewScheduler(cfg config.Config, logger *log.Logger) *Scheduler {
	recorder := metadata.NewRecorder("single-sync-worker", logger)

	retryParam := retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		backoffParamFrom(cfg),
	)

	archiveFetcher := fetcher.NewArchiveFetcher(recorder, cfg.Timeout())
	lister := archive.NewCDXLister(
		recorder,
		logger,
		&archiveFetcher,
		archive.NewListParam(cfg.ArchiveURL(), cfg.UserAgent(), cfg.From(), cfg.To(), cfg.MaxSnapshots()),
		retryParam,
	)

	var closers []io.Closer
	snapshotCache := newSnapshotCache(cfg, logger)
	if closer, ok := snapshotCache.(io.Closer); ok {
		closers = append(closers, closer)
	}
	extractor := robots.NewPathExtractor(
		recorder,
		logger,
		&archiveFetcher,
		snapshotCache,
		robots.NewExtractParam(cfg.ArchiveURL(), cfg.UserAgent(), cfg.DocumentMode(), cfg.TrimPaths()),
		retryParam,
	)

	storageSink := storage.NewLocalSink(recorder)

	s := NewSchedulerWithDeps(
		cfg,
		logger,
		recorder,
		recorder,
		lister,
		extractor,
		&storageSink,
		limiter.NewConcurrentRateLimiter(),
	)
	s.metrics = recorder
	s.closers = closers
	return s
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies.
// The rate limiter is configured from cfg.
func NewSchedulerWithDeps(
	cfg config.Config,
	logger *log.Logger,
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	lister archive.Lister,
	extractor robots.Extractor,
	storageSink storage.Sink,
	rateLimiter limiter.RateLimiter,
) *Scheduler {
	rateLimiter.SetBaseDelay(cfg.BaseDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())
	rateLimiter.SetBackoffParam(backoffParamFrom(cfg))

	return &Scheduler{
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		logger:         logger,
		lister:         lister,
		extractor:      extractor,
		storageSink:    storageSink,
		rateLimiter:    rateLimiter,
		sleep:          timeutil.SleepContext,
		cfg:            cfg,
	}
}

// newSnapshotCache returns nil without a redis address: within one run every
// listed capture is distinct, so an in-process cache would never hit.
func newSnapshotCache(cfg config.Config, logger *log.Logger) cache.Cache {
	addr := cfg.CacheRedisAddr()
	if addr == "" {
		return nil
	}
	return cache.NewRedisCacheFromAddr(addr, cfg.CacheTTL(), logger)
}

func backoffParamFrom(cfg config.Config) timeutil.BackoffParam {
	return timeutil.NewBackoffParam(
		cfg.BackoffInitialDuration(),
		cfg.BackoffMultiplier(),
		cfg.BackoffMaxDuration(),
	)
}

// Close releases external resources such as the redis connection.
func (s *Scheduler) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Execute collects the disallowed paths of every archived robots.txt of host
// and writes them to <outputDir>/<host>-robots.txt.
func (s *Scheduler) Execute(ctx context.Context, host string) (Execution, error) {
	startTime := time.Now()
	archiveURL := s.cfg.ArchiveURL()
	pacingKey := archiveURL.Host

	execution := Execution{
		Host:       host,
		OutputPath: storage.OutputPath(s.cfg.OutputDir(), host),
	}
	paths := pathset.NewSet[string]()

	// Ensure final stats are recorded even if the run stops early
	defer func() {
		s.crawlFinalizer.RecordFinalStats(
			execution.Snapshots,
			execution.Processed,
			execution.Failed,
			paths.Size(),
			time.Since(startTime),
		)
		s.flushMetrics()
	}()

	// 1. List snapshots
	snapshots, err := s.lister.List(ctx, host)
	s.rateLimiter.MarkLastFetchAsNow(pacingKey)
	if err != nil {
		if ctx.Err() != nil {
			return execution, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		s.logger.Error(fmt.Sprintf("An error occurred while fetching robots.txt snapshots: %s", err.Error()))
		s.adjustPacing(pacingKey, err)
		snapshots = nil
	} else if len(snapshots) == 0 {
		s.logger.Warn("No robots.txt snapshots found.")
	}

	execution.Snapshots = len(snapshots)
	s.logger.Info(fmt.Sprintf("Found %d unique snapshots", len(snapshots)))
	if len(snapshots) == 0 {
		s.logger.Info("No snapshots to process. Exiting.")
		return execution, nil
	}

	// 2. Extract paths snapshot by snapshot
	s.logger.Info("Processing snapshots...")
	for _, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return execution, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		if err := s.sleep(ctx, s.rateLimiter.ResolveDelay(pacingKey)); err != nil {
			return execution, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		found, extractErr := s.extractor.Extract(ctx, snapshot)
		s.rateLimiter.MarkLastFetchAsNow(pacingKey)
		execution.Processed++
		if extractErr != nil {
			if ctx.Err() != nil {
				return execution, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			execution.Failed++
			s.logger.Error(fmt.Sprintf("An error occurred while fetching %s: %s", s.snapshotTarget(snapshot), extractErr.Error()))
			s.adjustPacing(pacingKey, extractErr)
			continue
		}
		s.rateLimiter.ResetBackoff(pacingKey)
		paths.AddAll(found...)
	}

	execution.Paths = pathset.Sorted(paths)
	execution.UniquePaths = len(execution.Paths)

	// 3. Write the merged set
	if s.cfg.DryRun() {
		s.logger.Info(fmt.Sprintf("[dry-run] Would save %d unique paths to %s", execution.UniquePaths, execution.OutputPath))
		return execution, nil
	}

	writeResult, writeErr := s.storageSink.Write(s.cfg.OutputDir(), host, paths, s.cfg.HashAlgo())
	if writeErr != nil {
		s.logger.Error(fmt.Sprintf("Failed to save paths to %s: %s", execution.OutputPath, writeErr.Error()))
		return execution, writeErr
	}
	execution.Written = true
	execution.WriteResult = writeResult
	s.logger.Info(fmt.Sprintf("[*] Saved %d unique paths to %s", execution.UniquePaths, writeResult.Path()))

	return execution, nil
}

// adjustPacing stretches the delay after a throttling answer when enabled.
func (s *Scheduler) adjustPacing(key string, err failure.ClassifiedError) {
	if !s.cfg.BackoffOnThrottle() {
		return
	}
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) && fetchErr.IsThrottle() {
		s.rateLimiter.Backoff(key)
	}
}

func (s *Scheduler) snapshotTarget(snapshot archive.Snapshot) string {
	u, err := snapshot.URL(s.cfg.ArchiveURL())
	if err != nil {
		return snapshot.String()
	}
	return u.String()
}

func (s *Scheduler) flushMetrics() {
	path := s.cfg.MetricsFile()
	if path == "" || s.metrics == nil {
		return
	}
	if err := s.metrics.WriteMetrics(path); err != nil {
		s.logger.Warn("failed to write metrics", "path", path, "err", err)
	}
}
