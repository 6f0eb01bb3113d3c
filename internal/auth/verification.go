// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// VerificationTokenTTL is the lifetime of an email verification token.
const VerificationTokenTTL = 24 * time.Hour

// EmailVerification is a one-time proof of mailbox ownership. A user has
// at most one live verification token; issuing a new one supersedes any
// prior token.
type EmailVerification struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewEmailVerification creates a validated EmailVerification instance.
func NewEmailVerification(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*EmailVerification, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("VERIFY_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("VERIFY_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("VERIFY_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &EmailVerification{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpired returns true if the verification token has expired.
func (v *EmailVerification) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}

// VerificationRepository manages email verification token persistence.
type VerificationRepository interface {
	// Create stores a new verification token.
	Create(ctx context.Context, verification *EmailVerification) error

	// GetByTokenHash retrieves a verification token by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*EmailVerification, error)

	// Delete removes a verification token by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all verification tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired verification tokens.
	DeleteExpired(ctx context.Context) (int64, error)
}
