package robots_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/archive"
	"github.com/rohmanhakim/wayback-robots/internal/fetcher"
	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/internal/robots"
	"github.com/rohmanhakim/wayback-robots/internal/robots/cache"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
	"github.com/rohmanhakim/wayback-robots/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSnapshot = archive.Snapshot{Timestamp: "20200101000000", Original: "http://example.com/robots.txt"}

type extractorFixture struct {
	server *httptest.Server
	hits   *int32
	logs   *bytes.Buffer
	sink   *errorCountingSink
}

type errorCountingSink struct {
	metadata.NoopSink
	errors []metadata.ErrorCause
}

func (s *errorCountingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	if packageName == "robots" {
		s.errors = append(s.errors, cause)
	}
}

func newFixture(t *testing.T, status int, body string) *extractorFixture {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/web/20200101000000/http://example.com/robots.txt", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return &extractorFixture{
		server: server,
		hits:   &hits,
		logs:   &bytes.Buffer{},
		sink:   &errorCountingSink{},
	}
}

func (f *extractorFixture) extractor(t *testing.T, c cache.Cache, mode robots.DocumentMode, trim bool) *robots.PathExtractor {
	t.Helper()
	base, err := url.Parse(f.server.URL)
	require.NoError(t, err)

	archiveFetcher := fetcher.NewArchiveFetcher(f.sink, 5*time.Second)
	return robots.NewPathExtractor(
		f.sink,
		log.NewWithOptions(f.logs, log.Options{Level: log.DebugLevel}),
		&archiveFetcher,
		c,
		robots.NewExtractParam(*base, "", mode, trim),
		retry.NewRetryParam(0, 0, 1, 1, timeutil.NewBackoffParam(time.Millisecond, 2, time.Millisecond)),
	)
}

func TestPathExtractor_Extract_FindsPaths(t *testing.T) {
	f := newFixture(t, http.StatusOK, "User-agent: *\nDisallow: /admin\nDisallow:   /secret  ")

	paths, err := f.extractor(t, nil, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)

	require.Nil(t, err)
	assert.Equal(t, []string{"/admin", "/secret  "}, paths)
	assert.Contains(t, f.logs.String(), "Fetching "+f.server.URL+"/web/20200101000000/http://example.com/robots.txt")
	assert.Contains(t, f.logs.String(), "Found 2 paths in")
}

func TestPathExtractor_Extract_NoDirectives(t *testing.T) {
	f := newFixture(t, http.StatusOK, "User-agent: *\nAllow: /")

	paths, err := f.extractor(t, nil, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)

	require.Nil(t, err)
	assert.Empty(t, paths)
	assert.Contains(t, f.logs.String(), "No Disallow directives found in")
}

func TestPathExtractor_Extract_FetchFailure(t *testing.T) {
	f := newFixture(t, http.StatusNotFound, "")

	paths, err := f.extractor(t, nil, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)

	require.NotNil(t, err)
	assert.Nil(t, paths)

	var robotsErr *robots.RobotsError
	require.ErrorAs(t, err, &robotsErr)
	assert.Equal(t, robots.ErrCauseSnapshotFetch, robotsErr.Cause)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	assert.Equal(t, []metadata.ErrorCause{metadata.CauseNetworkFailure}, f.sink.errors)
}

func TestPathExtractor_Extract_SkipModeIgnoresHTML(t *testing.T) {
	f := newFixture(t, http.StatusOK, "<!DOCTYPE html><html><body><pre>Disallow: /x</pre></body></html>")

	paths, err := f.extractor(t, nil, robots.DocumentModeSkip, false).Extract(context.Background(), testSnapshot)

	require.Nil(t, err)
	assert.Empty(t, paths)
}

func TestPathExtractor_Extract_TextModeReadsHTML(t *testing.T) {
	f := newFixture(t, http.StatusOK, "<!DOCTYPE html><html><body><pre>Disallow: /x</pre></body></html>")

	paths, err := f.extractor(t, nil, robots.DocumentModeText, false).Extract(context.Background(), testSnapshot)

	require.Nil(t, err)
	assert.Equal(t, []string{"/x"}, paths)
}

func TestPathExtractor_Extract_UsesCache(t *testing.T) {
	f := newFixture(t, http.StatusOK, "Disallow: /a")
	memory := cache.NewMemoryCache()
	extractor := f.extractor(t, memory, robots.DocumentModeRaw, false)

	first, err := extractor.Extract(context.Background(), testSnapshot)
	require.Nil(t, err)
	second, err := extractor.Extract(context.Background(), testSnapshot)
	require.Nil(t, err)

	assert.Equal(t, []string{"/a"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.hits))
	assert.Equal(t, 1, memory.Size())

	cached, found := memory.Get(context.Background(), robots.CacheKey(testSnapshot))
	require.True(t, found)
	assert.Contains(t, cached, `"paths":["/a"]`)
	assert.Contains(t, cached, `"digest":"`)
}

func TestPathExtractor_Extract_CacheIgnoredForOtherSettings(t *testing.T) {
	f := newFixture(t, http.StatusOK, "Disallow: /a  ")
	memory := cache.NewMemoryCache()

	raw, err := f.extractor(t, memory, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)
	require.Nil(t, err)
	trimmed, err := f.extractor(t, memory, robots.DocumentModeRaw, true).Extract(context.Background(), testSnapshot)
	require.Nil(t, err)

	assert.Equal(t, []string{"/a  "}, raw)
	assert.Equal(t, []string{"/a"}, trimmed)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.hits))
}

func TestPathExtractor_Extract_FailuresAreNotCached(t *testing.T) {
	f := newFixture(t, http.StatusServiceUnavailable, "")
	memory := cache.NewMemoryCache()

	_, err := f.extractor(t, memory, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)

	require.NotNil(t, err)
	assert.True(t, err.(*robots.RobotsError).IsRetryable())
	assert.Equal(t, 0, memory.Size())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t,
		"wayback-robots:snapshot:20200101000000/http://example.com/robots.txt",
		robots.CacheKey(testSnapshot),
	)
}

func TestPathExtractor_Extract_DecodesLatin1Capture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("User-agent: *\nDisallow: /r\xe9sum\xe9\nDisallow: /admin"))
	}))
	defer server.Close()
	f := &extractorFixture{server: server, logs: &bytes.Buffer{}, sink: &errorCountingSink{}}

	paths, err := f.extractor(t, nil, robots.DocumentModeRaw, false).Extract(context.Background(), testSnapshot)

	require.Nil(t, err)
	assert.Equal(t, []string{"/résumé", "/admin"}, paths)
}
