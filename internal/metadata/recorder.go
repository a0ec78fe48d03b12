package metadata

import (
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
)

/*
Metadata Collected
- Fetch timestamps, durations and attempt counts
- HTTP status codes
- Content hashes of written artifacts
- Error classifications

Metadata is write-only.
No component may read metadata to influence run decisions.
*/

/*
Recorder captures structured run events.
It must not:
- perform I/O decisions
- affect control flow

Events are emitted as DEBUG log lines and aggregated into a private
prometheus registry that can be dumped to a textfile after the run.
*/
type Recorder struct {
	workerId string
	logger   *log.Logger

	registry      *prometheus.Registry
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	artifacts     *prometheus.CounterVec
	snapshots     prometheus.Gauge
	failed        prometheus.Gauge
	uniquePaths   prometheus.Gauge
	runDuration   prometheus.Gauge

	stats []runStats
}

func NewRecorder(workerId string, logger *log.Logger) *Recorder {
	r := &Recorder{
		workerId: workerId,
		logger:   logger.WithPrefix("metadata"),
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayback_robots_fetches_total",
				Help: "Total number of archive requests.",
			},
			[]string{"kind", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayback_robots_fetch_duration_seconds",
				Help:    "Duration of archive requests.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayback_robots_errors_total",
				Help: "Total number of recorded errors.",
			},
			[]string{"package", "cause"},
		),
		artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayback_robots_artifacts_total",
				Help: "Total number of written artifacts.",
			},
			[]string{"kind"},
		),
		snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayback_robots_snapshots",
			Help: "Snapshots listed for the host in the last run.",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayback_robots_failed_snapshots",
			Help: "Snapshots whose fetch failed in the last run.",
		}),
		uniquePaths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayback_robots_unique_paths",
			Help: "Unique disallowed paths collected in the last run.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wayback_robots_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}

	r.registry.MustRegister(
		r.fetches,
		r.fetchDuration,
		r.errors,
		r.artifacts,
		r.snapshots,
		r.failed,
		r.uniquePaths,
		r.runDuration,
	)
	return r
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.errors.WithLabelValues(packageName, cause.String()).Inc()

	keyvals := []interface{}{
		"worker", r.workerId,
		"package", packageName,
		"action", action,
		"cause", cause.String(),
		"error", errorString,
	}
	keyvals = append(keyvals, attrsToKeyvals(observedAt, attrs)...)
	r.logger.Debug("error recorded", keyvals...)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	attempts int,
	kind FetchKind,
) {
	status := "error"
	if httpStatus > 0 {
		status = strconv.Itoa(httpStatus)
	}
	r.fetches.WithLabelValues(string(kind), status).Inc()
	r.fetchDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())

	r.logger.Debug("fetch recorded",
		"worker", r.workerId,
		"kind", kind,
		"url", fetchUrl,
		"status", httpStatus,
		"duration", duration,
		"content_type", contentType,
		"attempts", attempts,
	)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.artifacts.WithLabelValues(string(kind)).Inc()

	keyvals := []interface{}{"worker", r.workerId, "kind", kind, "path", path}
	keyvals = append(keyvals, attrsToKeyvals(time.Time{}, attrs)...)
	r.logger.Debug("artifact recorded", keyvals...)
}

/*
RecordFinalStats records a terminal, derived summary of a completed run.

Contract:
  - MUST be called exactly once per run, after the snapshot loop ended.
  - The provided values MUST be derived from scheduler state.
  - Recorded stats MUST NOT influence control flow.
*/
func (r *Recorder) RecordFinalStats(
	snapshots int,
	processed int,
	failed int,
	uniquePaths int,
	duration time.Duration,
) {
	stats := runStats{
		snapshots:   snapshots,
		processed:   processed,
		failed:      failed,
		uniquePaths: uniquePaths,
		durationMs:  duration.Milliseconds(),
	}
	r.append(stats)

	r.snapshots.Set(float64(snapshots))
	r.failed.Set(float64(failed))
	r.uniquePaths.Set(float64(uniquePaths))
	r.runDuration.Set(duration.Seconds())

	r.logger.Debug("run finished",
		"worker", r.workerId,
		"snapshots", snapshots,
		"processed", processed,
		"failed", failed,
		"unique_paths", uniquePaths,
		"duration_ms", stats.durationMs,
	)
}

func (r *Recorder) append(stats runStats) {
	r.stats = append(r.stats, stats)
}

// Registry exposes the collectors for dumping and inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteMetrics dumps the registry to path in the prometheus text format.
func (r *Recorder) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return err
	}
	r.RecordArtifact(ArtifactMetrics, path, nil)
	return nil
}

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		attempts int,
		kind FetchKind,
	)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

type CrawlFinalizer interface {
	RecordFinalStats(
		snapshots int,
		processed int,
		failed int,
		uniquePaths int,
		duration time.Duration,
	)
}

// NoopSink implements MetadataSink and CrawlFinalizer but does nothing.
// The scheduler (or a test) decides whether to inject a Recorder or NoopSink.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	attempts int,
	kind FetchKind,
) {
}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

func (n *NoopSink) RecordFinalStats(
	snapshots int,
	processed int,
	failed int,
	uniquePaths int,
	duration time.Duration,
) {
}
