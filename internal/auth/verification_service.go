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

// VerificationService issues and redeems one-time email verification
// tokens and gates login on verification status.
type VerificationService struct {
	users         UserRepository
	verifications VerificationRepository
	tx            TxRunner
	mailer        Mailer
	ttl           time.Duration
	logger        *slog.Logger
}

// NewVerificationService creates a VerificationService. ttl <= 0 falls
// back to the default 24-hour token lifetime.
func NewVerificationService(
	users UserRepository,
	verifications VerificationRepository,
	tx TxRunner,
	mailer Mailer,
	ttl time.Duration,
	logger *slog.Logger,
) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if verifications == nil {
		return nil, oops.Errorf("verifications repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transaction runner is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if ttl <= 0 {
		ttl = VerificationTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		users:         users,
		verifications: verifications,
		tx:            tx,
		mailer:        mailer,
		ttl:           ttl,
		logger:        logger,
	}, nil
}

// Issue supersedes any existing verification token for the user and
// creates a fresh one, atomically, so exactly one live token exists
// afterwards. Returns the plaintext token.
func (s *VerificationService) Issue(ctx context.Context, user *User) (string, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").
			With("operation", "generate verification token").
			Wrap(err)
	}

	verification, err := NewEmailVerification(user.ID, tokenHash, time.Now().Add(s.ttl))
	if err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").
			With("operation", "build verification token").
			Wrap(err)
	}

	err = s.tx.InTx(ctx, func(r Repos) error {
		if err := r.Verifications.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return r.Verifications.Create(ctx, verification)
	})
	if err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").
			With("operation", "supersede and persist verification token").
			Wrap(err)
	}

	return token, nil
}

// IssueAndSend issues a fresh token and mails it to the user. Email
// delivery failure is logged, never returned: the committed token stays
// valid and the user can request a resend.
func (s *VerificationService) IssueAndSend(ctx context.Context, user *User) error {
	token, err := s.Issue(ctx, user)
	if err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.DisplayName(), token); err != nil {
		errutil.LogError(s.logger, "failed to send verification email", err)
	}
	return nil
}

// Redeem consumes a verification token. A missing token is invalid; an
// expired one is deleted first (delete-on-read) and then reported invalid.
// On success the user's email-verified flag flips and the token is deleted
// in a single transaction: both effects or neither.
func (s *VerificationService) Redeem(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("VERIFY_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	verification, err := s.verifications.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("VERIFY_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "get verification by token hash").
			Wrap(err)
	}

	if verification.IsExpired() {
		if err := s.verifications.Delete(ctx, verification.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.logger, "failed to evict expired verification token", err)
		}
		return nil, oops.Code("VERIFY_TOKEN_EXPIRED").Wrap(ErrInvalidToken)
	}

	err = s.tx.InTx(ctx, func(r Repos) error {
		if err := r.Users.MarkEmailVerified(ctx, verification.UserID); err != nil {
			return err
		}
		return r.Verifications.Delete(ctx, verification.ID)
	})
	if err != nil {
		// A concurrent redeem may have consumed the token between lookup
		// and transaction; report it as invalid rather than a server error.
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("VERIFY_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "flip verified flag and consume token").
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, verification.UserID)
	if err != nil {
		return nil, oops.Code("VERIFY_REDEEM_FAILED").
			With("operation", "load verified user").
			Wrap(err)
	}

	return user, nil
}

// Resend issues a fresh verification token for the given email address.
// An unknown email returns success (enumeration protection); an already
// verified account returns ErrAlreadyVerified. Revealing verified status
// while hiding existence is an intentional asymmetry: silently succeeding
// would leave a verified user waiting for an email that never comes.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("VERIFY_RESEND_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if user.EmailVerified {
		return oops.Code("VERIFY_ALREADY_VERIFIED").Wrap(ErrAlreadyVerified)
	}

	return s.IssueAndSend(ctx, user)
}
