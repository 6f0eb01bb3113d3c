// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session lifetime and anomaly defaults.
const (
	// SessionTTL is the default lifetime of a session issued at login.
	SessionTTL = 30 * 24 * time.Hour

	// AnomalyThreshold is the session-per-IP count above which an address
	// is surfaced as suspicious.
	AnomalyThreshold = 5
)

// Session represents one authenticated client. A user may hold any number
// of concurrent sessions. The opaque bearer token is never stored; only
// its hash is.
type Session struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	TokenHash  string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// SessionMetadata is optional client information captured at login.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// NewSession creates a validated Session instance.
// IPAddress and UserAgent are optional and may be empty.
func NewSession(userID ulid.ULID, tokenHash string, meta SessionMetadata, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastUsedAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the given time.
// Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// UpdateLastUsed updates the LastUsedAt timestamp for a session.
	UpdateLastUsed(ctx context.Context, id ulid.ULID, lastUsed time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByTokenHash removes the session with the given token hash.
	// Returns ErrNotFound if no such session exists.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all sessions for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// AnomalousIPs returns the IP addresses holding more than threshold
	// live sessions for the user.
	AnomalousIPs(ctx context.Context, userID ulid.ULID, threshold int) ([]string, error)

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
