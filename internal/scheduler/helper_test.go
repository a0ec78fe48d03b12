package scheduler_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/archive"
	"github.com/rohmanhakim/wayback-robots/internal/config"
	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/internal/scheduler"
	"github.com/rohmanhakim/wayback-robots/internal/storage"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testHost = "example.com"

// schedulerFixture bundles a scheduler with its doubles
type schedulerFixture struct {
	scheduler *scheduler.Scheduler
	lister    *listerMock
	extractor *extractorMock
	limiter   *rateLimiterMock
	finalizer *mockFinalizer
	sink      *errorRecordingSink
	logs      *bytes.Buffer
	cfg       config.Config
}

// newTestConfig builds a config writing into a temporary directory
func newTestConfig(t *testing.T, apply func(c *config.Config) *config.Config) config.Config {
	t.Helper()
	builder := config.WithDefault(testHost).WithOutputDir(t.TempDir()).WithRandomSeed(1)
	if apply != nil {
		builder = apply(builder)
	}
	cfg, err := builder.Build()
	require.NoError(t, err)
	return cfg
}

// createSchedulerForTest wires a scheduler around mocks and a real local sink
func createSchedulerForTest(t *testing.T, cfg config.Config, storageSink storage.Sink) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		lister:    new(listerMock),
		extractor: new(extractorMock),
		limiter:   newRateLimiterMockForTest(t),
		finalizer: newMockFinalizer(t),
		sink:      &errorRecordingSink{},
		logs:      &bytes.Buffer{},
		cfg:       cfg,
	}
	if storageSink == nil {
		localSink := storage.NewLocalSink(f.sink)
		storageSink = &localSink
	}
	logger := log.NewWithOptions(f.logs, log.Options{Level: log.DebugLevel})
	f.scheduler = scheduler.NewSchedulerWithDeps(
		cfg,
		logger,
		f.finalizer,
		f.sink,
		f.lister,
		f.extractor,
		storageSink,
		f.limiter,
	)
	return f
}

func snapshotsForTest(timestamps ...string) []archive.Snapshot {
	snapshots := make([]archive.Snapshot, 0, len(timestamps))
	for _, ts := range timestamps {
		snapshots = append(snapshots, archive.Snapshot{
			Timestamp: ts,
			Original:  "https://" + testHost + "/robots.txt",
		})
	}
	return snapshots
}

// listerMock is a testify mock for archive.Lister
type listerMock struct {
	mock.Mock
}

func (l *listerMock) List(ctx context.Context, host string) ([]archive.Snapshot, failure.ClassifiedError) {
	args := l.Called(ctx, host)
	var snapshots []archive.Snapshot
	if args.Get(0) != nil {
		snapshots = args.Get(0).([]archive.Snapshot)
	}
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return snapshots, err
}

// extractorMock is a testify mock for robots.Extractor
type extractorMock struct {
	mock.Mock
}

func (e *extractorMock) Extract(ctx context.Context, snapshot archive.Snapshot) ([]string, failure.ClassifiedError) {
	args := e.Called(ctx, snapshot)
	var paths []string
	if args.Get(0) != nil {
		paths = args.Get(0).([]string)
	}
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return paths, err
}

// mockFinalizer is a test double that captures final run statistics
type mockFinalizer struct {
	calls         int
	recordedStats *capturedStats
}

type capturedStats struct {
	snapshots   int
	processed   int
	failed      int
	uniquePaths int
	duration    time.Duration
}

func newMockFinalizer(t *testing.T) *mockFinalizer {
	t.Helper()
	return &mockFinalizer{}
}

func (m *mockFinalizer) RecordFinalStats(
	snapshots int,
	processed int,
	failed int,
	uniquePaths int,
	duration time.Duration,
) {
	m.calls++
	m.recordedStats = &capturedStats{
		snapshots:   snapshots,
		processed:   processed,
		failed:      failed,
		uniquePaths: uniquePaths,
		duration:    duration,
	}
}

// errorRecordingSink is a test double that counts errors and artifacts
type errorRecordingSink struct {
	errorCount    int
	artifactCount int
}

func (e *errorRecordingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	e.errorCount++
}

func (e *errorRecordingSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	attempts int,
	kind metadata.FetchKind,
) {
}

func (e *errorRecordingSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	e.artifactCount++
}
