// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultBurstCapacity is the number of requests a client may issue in
	// a burst before rate limiting kicks in.
	DefaultBurstCapacity = 5

	// DefaultSustainedRate is the sustained request rate (token refill
	// rate) in requests per second.
	DefaultSustainedRate = 5.0 / 60.0

	// DefaultCleanupInterval is the interval at which the background
	// goroutine removes stale client buckets.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultClientMaxAge is how long an idle client is tracked before
	// cleanup removes it.
	DefaultClientMaxAge = time.Hour
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// BurstCapacity is the maximum number of requests allowed in a burst.
	// Defaults to DefaultBurstCapacity if zero or negative.
	BurstCapacity int

	// SustainedRate is the refill rate in requests per second. Defaults to
	// DefaultSustainedRate if zero or negative.
	SustainedRate float64

	// CleanupInterval is the interval at which background cleanup runs.
	// Defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// ClientMaxAge is the idle age past which a client bucket is dropped.
	// Defaults to DefaultClientMaxAge if zero.
	ClientMaxAge time.Duration
}

// clientBucket tracks token bucket state for a single client address.
type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter applies per-client-IP rate limiting using a token bucket.
// It is safe for concurrent use.
//
// A background goroutine periodically drops idle clients. Call Close to
// stop it and release resources.
type RateLimiter struct {
	mu            sync.Mutex
	clients       map[string]*clientBucket
	burstCapacity int
	sustainedRate float64 // tokens per second
	clientMaxAge  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	// Gauge for tracked client count (nil if no registry provided).
	clientGauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry additionally registers a client count gauge
// with the provided Prometheus registry.
func NewRateLimiterWithRegistry(name string, cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	rl := newRateLimiter(cfg, nil)
	if reg != nil {
		rl.clientGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "lockbird_ratelimiter_clients",
			Help:        "Current number of tracked rate limiter clients",
			ConstLabels: prometheus.Labels{"limiter": name},
		})
		reg.MustRegister(rl.clientGauge)
	}
	return rl
}

func newRateLimiter(cfg RateLimiterConfig, _ prometheus.Registerer) *RateLimiter {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}

	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	clientMaxAge := cfg.ClientMaxAge
	if clientMaxAge <= 0 {
		clientMaxAge = DefaultClientMaxAge
	}

	rl := &RateLimiter{
		clients:       make(map[string]*clientBucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		clientMaxAge:  clientMaxAge,
		stopChan:      make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allow checks whether a request from the given client is allowed.
// Returns (allowed, retryAfter) where retryAfter is the wait until the
// next token is available (zero when allowed). Each allowed call consumes
// one token; tokens refill at the sustained rate up to the burst
// capacity.
func (rl *RateLimiter) Allow(client string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	bucket, exists := rl.clients[client]
	if !exists {
		// New clients start with a full bucket.
		bucket = &clientBucket{
			tokens:    float64(rl.burstCapacity),
			lastCheck: now,
		}
		rl.clients[client] = bucket
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * rl.sustainedRate
	if bucket.tokens > float64(rl.burstCapacity) {
		bucket.tokens = float64(rl.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}

	deficit := 1.0 - bucket.tokens
	retryAfter = time.Duration(deficit / rl.sustainedRate * float64(time.Second))
	return false, retryAfter
}

// ClientCount returns the number of tracked clients. Useful for testing
// and monitoring.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Cleanup removes clients idle longer than maxAge. Called automatically
// by the background goroutine; exported for immediate cleanup in tests.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for client, bucket := range rl.clients {
		if bucket.lastCheck.Before(threshold) {
			delete(rl.clients, client)
		}
	}

	if rl.clientGauge != nil {
		rl.clientGauge.Set(float64(len(rl.clients)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(rl.clientMaxAge)
		case <-rl.stopChan:
			return
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call once.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}
