// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lockbird/lockbird/internal/auth"
	"github.com/lockbird/lockbird/pkg/errutil"
)

// envelope is the wire shape of every response. Status is "success" or
// "error"; Code is set only on errors.
type envelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details"`
	Data    any    `json:"data,omitempty"`
}

// userPayload is the user shape exposed over the wire. Password hashes
// and verification state stay internal.
type userPayload struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

func wireUser(u *auth.User) userPayload {
	return userPayload{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Encoding a fixed struct cannot fail; the client going away can.
	_ = json.NewEncoder(w).Encode(body)
}

func respondSuccess(w http.ResponseWriter, status int, details string, data any) {
	writeJSON(w, status, envelope{Status: "success", Details: details, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, envelope{Status: "error", Code: code, Details: details})
}

// respondServiceError maps a core error onto the HTTP boundary. Anything
// unrecognized is a 500 with a generic message; the detail goes to the
// log, never the client.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, http.StatusConflict, "USER_EXISTS", "User with this email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "INVALID_DATA", "Invalid email or password")
	case errors.Is(err, auth.ErrEmailNotVerified):
		respondError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Email address is not verified")
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "INVALID_TOKEN", "Token is invalid or expired")
	case errors.Is(err, auth.ErrAlreadyVerified):
		respondError(w, http.StatusBadRequest, "ALREADY_VERIFIED", "Email address is already verified")
	case errors.Is(err, auth.ErrPasswordTooLong):
		respondError(w, http.StatusBadRequest, "INVALID_DATA", "Password is too long")
	default:
		errutil.LogError(s.logger.With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		), "request failed", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Something went wrong")
	}
}
