package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenportal/backend/internal/config"
)

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func limiterFor(t *testing.T, counter WindowCounter, limit int, failOpen bool) http.Handler {
	t.Helper()
	rl := NewRateLimiter(counter, config.RateLimitConfig{
		Limit:         limit,
		WindowSeconds: 60,
		FailOpen:      failOpen,
	})
	return rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	h := limiterFor(t, &fakeCounter{}, 3, true)

	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1:1234")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(h, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterHeaders(t *testing.T) {
	h := limiterFor(t, &fakeCounter{}, 5, true)

	rec := doRequest(h, "10.0.0.2:1234")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	rec = doRequest(h, "10.0.0.2:1234")
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	h := limiterFor(t, &fakeCounter{}, 1, true)

	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.3:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.3:2").Code)

	// A different IP has its own window.
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.4:1").Code)
}

func TestRateLimiterFailOpen(t *testing.T) {
	h := limiterFor(t, &fakeCounter{err: errors.New("redis down")}, 1, true)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.5:1").Code)
}

func TestRateLimiterFailClosed(t *testing.T) {
	h := limiterFor(t, &fakeCounter{err: errors.New("redis down")}, 1, false)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.6:1").Code)
}
