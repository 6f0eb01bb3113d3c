// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		BurstCapacity: 3,
		SustainedRate: 0.001, // effectively no refill during the test
	})
	defer rl.Close()

	for i := 0; i < 3; i++ {
		allowed, retryAfter := rl.Allow("10.0.0.1")
		assert.True(t, allowed, "request %d should be allowed", i)
		assert.Zero(t, retryAfter)
	}

	allowed, retryAfter := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		BurstCapacity: 1,
		SustainedRate: 0.001,
	})
	defer rl.Close()

	allowed, _ := rl.Allow("10.0.0.1")
	require.True(t, allowed)
	allowed, _ = rl.Allow("10.0.0.1")
	require.False(t, allowed)

	// A different client has its own bucket.
	allowed, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed)
	assert.Equal(t, 2, rl.ClientCount())
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		BurstCapacity: 1,
		SustainedRate: 100, // fast refill keeps the test quick
	})
	defer rl.Close()

	allowed, _ := rl.Allow("10.0.0.1")
	require.True(t, allowed)
	allowed, _ = rl.Allow("10.0.0.1")
	require.False(t, allowed)

	time.Sleep(20 * time.Millisecond)

	allowed, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{BurstCapacity: 5})
	defer rl.Close()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	require.Equal(t, 2, rl.ClientCount())

	// Nothing is older than an hour yet.
	rl.Cleanup(time.Hour)
	assert.Equal(t, 2, rl.ClientCount())

	// Everything is older than zero.
	time.Sleep(time.Millisecond)
	rl.Cleanup(0)
	assert.Equal(t, 0, rl.ClientCount())
}

func TestRateLimiterCloseStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	rl.Close()
}

func TestRateLimiterRegistersGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	rl := NewRateLimiterWithRegistry("test", RateLimiterConfig{}, reg)
	defer rl.Close()

	rl.Allow("10.0.0.1")
	rl.Cleanup(time.Hour)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "lockbird_ratelimiter_clients", families[0].GetName())
	assert.Equal(t, float64(1), families[0].GetMetric()[0].GetGauge().GetValue())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		BurstCapacity: 1,
		SustainedRate: 0.001,
	})
	defer rl.Close()

	handler := rateLimit(rl, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:54321"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimitMiddlewareKeysOnForwardedFor(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		BurstCapacity: 1,
		SustainedRate: 0.001,
	})
	defer rl.Close()

	handler := rateLimit(rl, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Same proxy address, different original clients.
	for i, client := range []string{"198.51.100.1", "198.51.100.2"} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		r.Header.Set("X-Forwarded-For", client+", 10.0.0.1")

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code, "client %d should have its own bucket", i)
	}
}
