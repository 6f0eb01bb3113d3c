// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import "errors"

// Sentinel errors for expected, user-actionable conditions. Callers match
// with errors.Is; the HTTP boundary maps them to response codes. Anything
// not in this list is an unexpected backend failure and surfaces as a
// generic service error.
var (
	// ErrNotFound is returned by repositories when a requested entity does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserExists is returned when registering an email that is already
	// taken.
	ErrUserExists = errors.New("user already exists")

	// ErrEmailNotVerified is returned on login with correct credentials
	// before the email address has been verified.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrAlreadyVerified is returned when requesting a verification resend
	// for an account that is already verified.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrInvalidToken covers missing and expired tokens uniformly, for
	// sessions, email verification, and password resets alike.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrPasswordTooLong is returned when a password exceeds the hashing
	// input bound.
	ErrPasswordTooLong = errors.New("password too long")
)
