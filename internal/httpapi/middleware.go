// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lockbird/lockbird/internal/auth"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionKey
)

// UserFromContext returns the authenticated user set by the auth
// middleware.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userKey).(*auth.User)
	return u, ok
}

// SessionFromContext returns the validated session set by the auth
// middleware.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*auth.Session)
	return s, ok
}

// clientIP resolves the client address for rate limiting and session
// metadata. The first X-Forwarded-For hop wins when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// secureHeaders sets baseline security headers on every response.
func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// rateLimit gates a handler behind a token bucket keyed by client IP.
func rateLimit(limiter *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := limiter.Allow(clientIP(r))
		if !allowed {
			seconds := int64(retryAfter / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth validates the session credential and injects the user and
// session into the request context. An invalid or expired credential
// clears the cookie so the client stops presenting it.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.cookies.Read(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No session found")
			return
		}

		user, session, err := s.svc.CurrentUser(r.Context(), token)
		if err != nil {
			// Only a rejected credential clears the cookie. A backend
			// failure says nothing about the session's validity, so the
			// client keeps its cookie and sees the opaque server error.
			if errors.Is(err, auth.ErrInvalidToken) {
				s.cookies.Clear(w)
				respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Session expired")
				return
			}
			s.respondServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
