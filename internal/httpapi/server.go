// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

// Package httpapi exposes the authentication core over HTTP. It owns the
// wire envelope, cookie handling, rate limiting, and nothing else; every
// decision about credentials and sessions is delegated to internal/auth.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/lockbird/lockbird/internal/auth"
)

// AuthService is the slice of the credential orchestrator the HTTP
// boundary consumes.
type AuthService interface {
	Register(ctx context.Context, email, password string, name *string) (*auth.User, error)
	Login(ctx context.Context, email, password, presentedToken string, meta auth.SessionMetadata) (*auth.User, *auth.Session, string, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*auth.User, *auth.Session, error)
}

// VerificationService is the email verification surface.
type VerificationService interface {
	Redeem(ctx context.Context, token string) (*auth.User, error)
	Resend(ctx context.Context, email string) error
}

// ResetService is the password reset surface.
type ResetService interface {
	Request(ctx context.Context, email string) error
	Redeem(ctx context.Context, token, newPassword string) error
}

// SessionReader is the session inspection surface for authenticated
// endpoints.
type SessionReader interface {
	ListAnomalies(ctx context.Context, userID ulid.ULID) ([]string, error)
}

// Config carries the boundary-level settings.
type Config struct {
	CookieName   string
	CookieSecret string
	CookieDomain string
	CookieSecure bool
}

// metrics holds the boundary's Prometheus counters. All fields are nil
// when no registry is provided.
type metrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	redemptions   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbird_registrations_total",
			Help: "Registration attempts by result",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbird_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbird_token_redemptions_total",
			Help: "One-shot token redemptions by kind and result",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(m.registrations, m.logins, m.redemptions)
	return m
}

func (m *metrics) observe(vec *prometheus.CounterVec, labels ...string) {
	if m == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// Server wires the HTTP routes to the core services.
type Server struct {
	svc          AuthService
	verification VerificationService
	resets       ResetService
	sessions     SessionReader

	cookies *CookieCodec
	logger  *slog.Logger
	metrics *metrics

	authLimiter  *RateLimiter
	emailLimiter *RateLimiter
	resetLimiter *RateLimiter
}

// NewServer builds the HTTP boundary. reg may be nil to disable metrics.
// Call Close to stop the rate limiter goroutines.
func NewServer(
	cfg Config,
	svc AuthService,
	verification VerificationService,
	resets ResetService,
	sessions SessionReader,
	logger *slog.Logger,
	reg prometheus.Registerer,
) (*Server, error) {
	if svc == nil || verification == nil || resets == nil || sessions == nil {
		return nil, oops.Code("SERVER_INVALID").Errorf("all services are required")
	}
	if cfg.CookieName == "" {
		return nil, oops.Code("SERVER_INVALID").Errorf("cookie name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		svc:          svc,
		verification: verification,
		resets:       resets,
		sessions:     sessions,
		cookies:      NewCookieCodec(cfg.CookieName, cfg.CookieSecret, cfg.CookieDomain, cfg.CookieSecure),
		logger:       logger,
		metrics:      newMetrics(reg),

		// 5 per minute for credential endpoints, 3 per 10 minutes for
		// verification email resends, 3 per hour for reset requests.
		authLimiter: NewRateLimiterWithRegistry("auth", RateLimiterConfig{
			BurstCapacity: 5,
			SustainedRate: 5.0 / 60.0,
		}, reg),
		emailLimiter: NewRateLimiterWithRegistry("email", RateLimiterConfig{
			BurstCapacity: 3,
			SustainedRate: 3.0 / 600.0,
		}, reg),
		resetLimiter: NewRateLimiterWithRegistry("reset", RateLimiterConfig{
			BurstCapacity: 3,
			SustainedRate: 3.0 / 3600.0,
		}, reg),
	}, nil
}

// Close stops the rate limiter goroutines.
func (s *Server) Close() {
	s.authLimiter.Close()
	s.emailLimiter.Close()
	s.resetLimiter.Close()
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(secureHeaders)

	api := r.PathPrefix("/api/v1").Subrouter()

	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.Handle("/register", rateLimit(s.authLimiter, http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	authRoutes.Handle("/login", rateLimit(s.authLimiter, http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	authRoutes.Handle("/verify-email", rateLimit(s.authLimiter, http.HandlerFunc(s.handleVerifyEmail))).Methods(http.MethodPost)
	authRoutes.Handle("/resend-verification", rateLimit(s.emailLimiter, http.HandlerFunc(s.handleResendVerification))).Methods(http.MethodPost)
	authRoutes.Handle("/request-password-reset", rateLimit(s.resetLimiter, http.HandlerFunc(s.handleRequestPasswordReset))).Methods(http.MethodPost)
	authRoutes.Handle("/reset-password", rateLimit(s.authLimiter, http.HandlerFunc(s.handleResetPassword))).Methods(http.MethodPost)

	userRoutes := api.PathPrefix("/user").Subrouter()
	userRoutes.Use(s.requireAuth)
	userRoutes.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	userRoutes.HandleFunc("/suspicious-sessions", s.handleSuspiciousSessions).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}
