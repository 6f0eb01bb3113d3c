// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lockbird/lockbird/pkg/errutil"
)

// SessionService manages the session lifecycle: Active -> Expired ->
// deleted, with explicit logout and the password-reset cascade handled by
// PasswordResetService.
type SessionService struct {
	sessions SessionRepository
	logger   *slog.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions SessionRepository, logger *slog.Logger) (*SessionService, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{sessions: sessions, logger: logger}, nil
}

// Create generates a fresh token and persists a new session for the user.
// Returns the session and the plaintext token; the token is handed out
// exactly once and never stored. Multiple concurrent sessions per user are
// allowed by design: no pre-existing session check happens here.
func (s *SessionService) Create(ctx context.Context, user *User, expiresAt time.Time, meta SessionMetadata) (*Session, string, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, tokenHash, meta, expiresAt)
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Validate looks up a session by its bearer token. An absent token is
// invalid; an expired session is deleted first (lazy expiry, no background
// sweep) and then reported invalid. The expiry check always completes
// before the session is trusted. On success the LastUsedAt timestamp is
// updated best-effort: a lost update under concurrent validation is
// acceptable, the freshness signal is not security-critical.
func (s *SessionService) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidToken)
	}

	tokenHash := HashToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Delete-on-read: the record must be gone before the token is
		// reported invalid, so an expired session cannot resurrect.
		if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "failed to evict expired session", err)
		}
		return nil, oops.Code("SESSION_EXPIRED").Wrap(ErrInvalidToken)
	}

	if err := s.sessions.UpdateLastUsed(ctx, session.ID, time.Now()); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogError(s.logger, "failed to update session last-used timestamp", err)
	}

	return session, nil
}

// Invalidate deletes the session identified by token. Idempotent: an
// absent token is a no-op.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, HashToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_INVALIDATE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return nil
}

// InvalidateAll deletes every session belonging to the user.
func (s *SessionService) InvalidateAll(ctx context.Context, userID ulid.ULID) error {
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_INVALIDATE_ALL_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// ListAnomalies returns the IP addresses holding more sessions than the
// anomaly threshold for the user. A detection signal for operators, not
// acted on automatically.
func (s *SessionService) ListAnomalies(ctx context.Context, userID ulid.ULID) ([]string, error) {
	ips, err := s.sessions.AnomalousIPs(ctx, userID, AnomalyThreshold)
	if err != nil {
		return nil, oops.Code("SESSION_ANOMALY_QUERY_FAILED").
			With("operation", "group sessions by ip").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return ips, nil
}
