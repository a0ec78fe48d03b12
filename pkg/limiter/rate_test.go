package limiter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/wayback-robots/pkg/limiter"
	"github.com/rohmanhakim/wayback-robots/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveHost = "web.archive.org"

func TestResolveDelay_UnknownHostHasNoDelay(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(time.Second)

	assert.Equal(t, time.Duration(0), r.ResolveDelay(archiveHost))
}

func TestResolveDelay_BaseDelayAfterFetch(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(time.Second)
	r.MarkLastFetchAsNow(archiveHost)

	delay := r.ResolveDelay(archiveHost)

	assert.LessOrEqual(t, delay, time.Second)
	assert.Greater(t, delay, 900*time.Millisecond)
}

func TestResolveDelay_ElapsedTimeIsSubtracted(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(20 * time.Millisecond)
	r.MarkLastFetchAsNow(archiveHost)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, time.Duration(0), r.ResolveDelay(archiveHost))
}

func TestResolveDelay_ZeroBaseDelay(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(0)
	r.MarkLastFetchAsNow(archiveHost)

	assert.Equal(t, time.Duration(0), r.ResolveDelay(archiveHost))
}

func TestResolveDelay_JitterWithinBounds(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(100 * time.Millisecond)
	r.SetJitter(50 * time.Millisecond)
	r.SetRandomSeed(42)
	r.MarkLastFetchAsNow(archiveHost)

	for i := 0; i < 50; i++ {
		delay := r.ResolveDelay(archiveHost)
		assert.LessOrEqual(t, delay, 150*time.Millisecond)
	}
}

func TestBackoff_GrowsAndResets(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(10 * time.Millisecond)
	r.SetBackoffParam(timeutil.NewBackoffParam(100*time.Millisecond, 2.0, 300*time.Millisecond))

	r.Backoff(archiveHost)
	timing, ok := r.HostTiming(archiveHost)
	require.True(t, ok)
	assert.Equal(t, 1, timing.BackoffCount)
	assert.Equal(t, 100*time.Millisecond, timing.BackoffDelay)

	r.Backoff(archiveHost)
	timing, _ = r.HostTiming(archiveHost)
	assert.Equal(t, 200*time.Millisecond, timing.BackoffDelay)

	r.Backoff(archiveHost)
	timing, _ = r.HostTiming(archiveHost)
	assert.Equal(t, 300*time.Millisecond, timing.BackoffDelay, "backoff is capped")

	r.MarkLastFetchAsNow(archiveHost)
	assert.Greater(t, r.ResolveDelay(archiveHost), 200*time.Millisecond)

	r.ResetBackoff(archiveHost)
	timing, _ = r.HostTiming(archiveHost)
	assert.Equal(t, 0, timing.BackoffCount)
	assert.Equal(t, time.Duration(0), timing.BackoffDelay)
	assert.LessOrEqual(t, r.ResolveDelay(archiveHost), 10*time.Millisecond)
}

func TestResetBackoff_UnknownHostIsNoop(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.ResetBackoff(archiveHost)

	_, ok := r.HostTiming(archiveHost)
	assert.False(t, ok)
}

func TestSetters(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(3 * time.Second)
	r.SetJitter(time.Second)

	assert.Equal(t, 3*time.Second, r.BaseDelay())
	assert.Equal(t, time.Second, r.Jitter())
}

func TestConcurrentAccess(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()
	r.SetJitter(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				switch (n + j) % 5 {
				case 0:
					r.MarkLastFetchAsNow(archiveHost)
				case 1:
					r.Backoff(archiveHost)
				case 2:
					r.ResetBackoff(archiveHost)
				case 3:
					r.ResolveDelay(archiveHost)
				case 4:
					r.SetBaseDelay(time.Duration(j) * time.Microsecond)
				}
			}
		}(i)
	}
	wg.Wait()

	_, ok := r.HostTiming(archiveHost)
	assert.True(t, ok)
}
