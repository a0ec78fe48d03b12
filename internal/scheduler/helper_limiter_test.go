package scheduler_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/wayback-robots/pkg/timeutil"
	"github.com/stretchr/testify/mock"
)

// rateLimiterMock is a testify mock for the RateLimiter
type rateLimiterMock struct {
	mock.Mock
}

// newRateLimiterMockForTest creates a rate limiter mock that never waits
func newRateLimiterMockForTest(t *testing.T) *rateLimiterMock {
	t.Helper()
	m := new(rateLimiterMock)
	m.On("SetBaseDelay", mock.Anything).Return()
	m.On("SetJitter", mock.Anything).Return()
	m.On("SetRandomSeed", mock.Anything).Return()
	m.On("SetBackoffParam", mock.Anything).Return()
	m.On("Backoff", mock.Anything).Return()
	m.On("ResetBackoff", mock.Anything).Return()
	m.On("MarkLastFetchAsNow", mock.Anything).Return()
	m.On("ResolveDelay", mock.Anything).Return(time.Duration(0))
	return m
}

func (m *rateLimiterMock) SetBaseDelay(baseDelay time.Duration) {
	m.Called(baseDelay)
}

func (m *rateLimiterMock) SetJitter(jitter time.Duration) {
	m.Called(jitter)
}

func (m *rateLimiterMock) SetRandomSeed(randomSeed int64) {
	m.Called(randomSeed)
}

func (m *rateLimiterMock) SetBackoffParam(param timeutil.BackoffParam) {
	m.Called(param)
}

func (m *rateLimiterMock) Backoff(host string) {
	m.Called(host)
}

func (m *rateLimiterMock) ResetBackoff(host string) {
	m.Called(host)
}

func (m *rateLimiterMock) MarkLastFetchAsNow(host string) {
	m.Called(host)
}

func (m *rateLimiterMock) ResolveDelay(host string) time.Duration {
	args := m.Called(host)
	return args.Get(0).(time.Duration)
}
