// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"time"

	"github.com/lockbird/lockbird/internal/auth"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeBody parses a JSON request body into dst. A false return means a
// response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "Malformed request body")
		return false
	}
	return true
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "A valid email address is required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "Password must be at least 8 characters")
		return
	}

	user, err := s.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.metrics.observe(s.metrics.registrations, "error")
		s.respondServiceError(w, r, err)
		return
	}

	s.metrics.observe(s.metrics.registrations, "success")
	respondSuccess(w, http.StatusCreated, "User created successfully", map[string]any{
		"user": wireUser(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validEmail(req.Email) || req.Password == "" {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "Email and password are required")
		return
	}

	// Any session the client presents is abandoned by re-authenticating,
	// success or not.
	presented, _ := s.cookies.Read(r)

	meta := auth.SessionMetadata{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	user, session, token, err := s.svc.Login(r.Context(), req.Email, req.Password, presented, meta)
	if err != nil {
		s.cookies.Clear(w)
		s.metrics.observe(s.metrics.logins, "error")
		s.respondServiceError(w, r, err)
		return
	}

	s.cookies.Set(w, token, session.ExpiresAt)
	s.metrics.observe(s.metrics.logins, "success")
	respondSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user": wireUser(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.cookies.Read(r); ok {
		if err := s.svc.Logout(r.Context(), token); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
	}
	s.cookies.Clear(w)
	respondSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "A token is required")
		return
	}

	user, err := s.verification.Redeem(r.Context(), req.Token)
	if err != nil {
		s.metrics.observe(s.metrics.redemptions, "verification", "error")
		s.respondServiceError(w, r, err)
		return
	}

	s.metrics.observe(s.metrics.redemptions, "verification", "success")
	respondSuccess(w, http.StatusOK, "Email verified successfully", map[string]any{
		"user": wireUser(user),
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "A valid email address is required")
		return
	}

	if err := s.verification.Resend(r.Context(), req.Email); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	// Unknown addresses observe the same response as known ones.
	respondSuccess(w, http.StatusOK, "If the account exists, a verification email has been sent", nil)
}

func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "A valid email address is required")
		return
	}

	if err := s.resets.Request(r.Context(), req.Email); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, "If the account exists, a password reset email has been sent", nil)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "A token is required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "Password must be at least 8 characters")
		return
	}

	if err := s.resets.Redeem(r.Context(), req.Token, req.Password); err != nil {
		s.metrics.observe(s.metrics.redemptions, "password_reset", "error")
		s.respondServiceError(w, r, err)
		return
	}

	s.metrics.observe(s.metrics.redemptions, "password_reset", "success")
	respondSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No session found")
		return
	}
	respondSuccess(w, http.StatusOK, "Session valid", map[string]any{
		"user": wireUser(user),
	})
}

type suspiciousSessionsPayload struct {
	IPAddresses []string  `json:"ip_addresses"`
	CheckedAt   time.Time `json:"checked_at"`
}

func (s *Server) handleSuspiciousSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No session found")
		return
	}

	ips, err := s.sessions.ListAnomalies(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Suspicious sessions checked", suspiciousSessionsPayload{
		IPAddresses: ips,
		CheckedAt:   time.Now().UTC(),
	})
}
