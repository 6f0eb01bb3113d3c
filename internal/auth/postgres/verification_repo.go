// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lockbird/lockbird/internal/auth"
)

// VerificationRepository implements auth.VerificationRepository using PostgreSQL.
type VerificationRepository struct {
	db Querier
}

// NewVerificationRepository creates a new VerificationRepository.
func NewVerificationRepository(db Querier) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a new verification token.
func (r *VerificationRepository) Create(ctx context.Context, verification *auth.EmailVerification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_verifications (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		verification.ID.String(),
		verification.UserID.String(),
		verification.TokenHash,
		verification.ExpiresAt,
		verification.CreatedAt,
	)
	if err != nil {
		return oops.Code("VERIFY_CREATE_FAILED").
			With("operation", "insert email_verification").
			With("user_id", verification.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a verification token by its token hash.
func (r *VerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.EmailVerification, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM email_verifications
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr     string
		userIDStr string
		hash      string
		expiresAt time.Time
		createdAt time.Time
	)
	err := row.Scan(&idStr, &userIDStr, &hash, &expiresAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFY_GET_BY_TOKEN_FAILED").
			With("operation", "get verification by token hash").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_ID").
			With("operation", "parse verification id").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.EmailVerification{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes a verification token by ID.
func (r *VerificationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM email_verifications WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("VERIFY_DELETE_FAILED").
			With("operation", "delete email_verification").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("VERIFY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all verification tokens for a user.
func (r *VerificationRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM email_verifications WHERE user_id = $1
	`, userID.String())
	if err != nil {
		return oops.Code("VERIFY_DELETE_BY_USER_FAILED").
			With("operation", "delete email_verifications by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired verification tokens and returns the count.
func (r *VerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM email_verifications WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("VERIFY_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired email_verifications").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.VerificationRepository = (*VerificationRepository)(nil)
