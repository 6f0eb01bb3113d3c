// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/lockbird/lockbird/pkg/errutil"
)

// PasswordResetService handles the password reset flow: one-time reset
// tokens, the password change itself, and the mandatory session cascade.
type PasswordResetService struct {
	users  UserRepository
	resets ResetRepository
	tx     TxRunner
	hasher PasswordHasher
	mailer Mailer
	ttl    time.Duration
	logger *slog.Logger
}

// NewPasswordResetService creates a PasswordResetService. ttl <= 0 falls
// back to the default one-hour token lifetime.
func NewPasswordResetService(
	users UserRepository,
	resets ResetRepository,
	tx TxRunner,
	hasher PasswordHasher,
	mailer Mailer,
	ttl time.Duration,
	logger *slog.Logger,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("resets repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transaction runner is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if ttl <= 0 {
		ttl = ResetTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordResetService{
		users:  users,
		resets: resets,
		tx:     tx,
		hasher: hasher,
		mailer: mailer,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Request issues a reset token for the given email and mails the reset
// link. An unknown email returns success without creating anything
// (enumeration protection: callers cannot distinguish the two outcomes).
// Any prior token for the user is deleted in the same transaction that
// creates the new one, so at most one live reset token exists per user.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, tokenHash, time.Now().Add(s.ttl))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset token").
			Wrap(err)
	}

	err = s.tx.InTx(ctx, func(r Repos) error {
		if err := r.Resets.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return r.Resets.Create(ctx, reset)
	})
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "supersede and persist reset token").
			Wrap(err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.DisplayName(), token); err != nil {
		errutil.LogError(s.logger, "failed to send password reset email", err)
	}

	return nil
}

// Redeem consumes a reset token and changes the user's password. A missing
// token is invalid; an expired one is deleted first (delete-on-read) and
// then reported invalid. On success a single transaction overwrites the
// password hash, deletes the reset token, and deletes every session the
// user owns. The cascade is mandatory: a stolen session must not survive a
// password reset, and a crash between the steps must not leave the
// password changed with sessions alive.
func (s *PasswordResetService) Redeem(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	if reset.IsExpired() {
		if err := s.resets.Delete(ctx, reset.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "failed to evict expired reset token", err)
		}
		return oops.Code("RESET_TOKEN_EXPIRED").Wrap(ErrInvalidToken)
	}

	// Hashing is CPU-bound and happens outside the transaction to keep it
	// short-lived.
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return err
		}
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	err = s.tx.InTx(ctx, func(r Repos) error {
		if err := r.Users.UpdatePassword(ctx, reset.UserID, passwordHash); err != nil {
			return err
		}
		if err := r.Resets.Delete(ctx, reset.ID); err != nil {
			return err
		}
		return r.Sessions.DeleteByUser(ctx, reset.UserID)
	})
	if err != nil {
		// A concurrent redeem consumed the token first; the password change
		// rolled back with it.
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_REDEEM_FAILED").
			With("operation", "change password and revoke sessions").
			Wrap(err)
	}

	return nil
}
