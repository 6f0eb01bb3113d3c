// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the baseline password policy. Validation of request
// shapes happens at the boundary; this is the defense-in-depth check inside
// the core.
const MinPasswordLength = 8

// User represents an identity record. Emails are stored case-sensitively
// and are unique. The password hash never leaves this package.
type User struct {
	ID            ulid.ULID
	Email         string
	PasswordHash  string
	Name          *string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser creates a validated, unverified User with an already-hashed
// password. Name is optional and may be nil.
func NewUser(email, passwordHash string, name *string) (*User, error) {
	if email == "" || !strings.Contains(email, "@") {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is invalid")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:            ulid.Make(),
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DisplayName returns the optional name, or the empty string.
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrUserExists (wrapped) when the
	// email is already taken; the storage uniqueness constraint is the
	// authoritative guard against concurrent registration.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (exact match).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// MarkEmailVerified flips the email-verified flag. The flag only ever
	// transitions false -> true.
	MarkEmailVerified(ctx context.Context, id ulid.ULID) error
}
