// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

// Package auth implements the credential and session lifecycle core.
//
// # Domain Types
//
// Domain types (User, Session, EmailVerification, PasswordReset) should be
// created using their respective constructors:
//   - NewUser - creates a User with a hashed password, unverified
//   - NewSession - creates a Session with validated owner and expiry
//   - NewEmailVerification - creates an EmailVerification with validated owner and expiry
//   - NewPasswordReset - creates a PasswordReset with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, logout use-case sequencing
//   - SessionService - session creation, validation, invalidation
//   - VerificationService - email verification token issuance and redemption
//   - PasswordResetService - password reset flow with session cascade
//
// Services are created with New*Service constructors that validate
// dependencies. All secrets (passwords, password hashes, plaintext tokens)
// stay inside this package and are never logged.
package auth
