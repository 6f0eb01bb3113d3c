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

// dummyPasswordHash is used when a user doesn't exist to prevent timing
// attacks: password verification still runs so response time stays
// consistent with the known-email path. This is NOT a real credential -
// it's a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service composes the hasher, session manager, and verification flow into
// the register/login/logout use cases. It is the only component with
// business-rule sequencing; nothing below it calls back up the chain.
type Service struct {
	users        UserRepository
	sessions     *SessionService
	verification *VerificationService
	hasher       PasswordHasher
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewService creates the auth orchestrator. sessionTTL <= 0 falls back to
// the default 30-day lifetime.
func NewService(
	users UserRepository,
	sessions *SessionService,
	verification *VerificationService,
	hasher PasswordHasher,
	sessionTTL time.Duration,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session service is required")
	}
	if verification == nil {
		return nil, oops.Errorf("verification service is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = SessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:        users,
		sessions:     sessions,
		verification: verification,
		hasher:       hasher,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}, nil
}

// Register creates an unverified user and mails a verification link.
// The existence pre-check accepts a benign race: two concurrent
// registrations may both pass it, and the storage uniqueness constraint is
// the authoritative guard producing ErrUserExists for the loser.
func (s *Service) Register(ctx context.Context, email, password string, name *string) (*User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code("AUTH_USER_EXISTS").Wrap(ErrUserExists)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, passwordHash, name)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, oops.Code("AUTH_USER_EXISTS").Wrap(ErrUserExists)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist user").
			Wrap(err)
	}

	if err := s.verification.IssueAndSend(ctx, user); err != nil {
		// The account exists; a failed token issue is recoverable through
		// the resend flow.
		errutil.LogError(s.logger, "failed to issue verification token at registration", err)
	}

	return user, nil
}

// Login verifies credentials and creates a session. Any session token the
// caller presented is proactively invalidated first, even if the attempt
// then fails: re-authenticating abandons the old session. An unknown email
// and a wrong password both yield ErrInvalidCredentials, with a dummy hash
// verification keeping the two paths time-consistent. Correct credentials
// on an unverified account yield ErrEmailNotVerified, no session, and a
// fresh verification email.
func (s *Service) Login(ctx context.Context, email, password, presentedToken string, meta SessionMetadata) (*User, *Session, string, error) {
	if presentedToken != "" {
		if err := s.sessions.Invalidate(ctx, presentedToken); err != nil {
			errutil.LogError(s.logger, "failed to invalidate presented session at login", err)
		}
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, against the dummy hash if need be.
	valid := s.hasher.Verify(password, targetHash)
	if !userExists || !valid {
		return nil, nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if !user.EmailVerified {
		if err := s.verification.IssueAndSend(ctx, user); err != nil {
			errutil.LogError(s.logger, "failed to re-issue verification token at login", err)
		}
		return nil, nil, "", oops.Code("AUTH_EMAIL_NOT_VERIFIED").Wrap(ErrEmailNotVerified)
	}

	// Transparent work-factor upgrade: re-hash under current parameters.
	// Best effort, login succeeds regardless.
	if s.hasher.NeedsRehash(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
				errutil.LogError(s.logger, "failed to upgrade password hash", err)
			}
		}
	}

	session, token, err := s.sessions.Create(ctx, user, time.Now().Add(s.sessionTTL), meta)
	if err != nil {
		return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	return user, session, token, nil
}

// Logout invalidates the presented session. Best effort: an absent session
// is not an error, the caller always observes success.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Invalidate(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "invalidate session").
			Wrap(err)
	}
	return nil
}

// CurrentUser resolves the user owning a valid session token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, *Session, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Session outlived its user; treat the token as invalid.
			return nil, nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, session, nil
}
