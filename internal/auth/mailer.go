// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import "context"

// Mailer delivers the two outbound emails the core triggers. Delivery is
// fire-and-forget from the core's perspective: a failure is logged and the
// already-committed token survives so the user can request a resend.
type Mailer interface {
	// SendVerificationEmail sends the email-verification link for token.
	SendVerificationEmail(ctx context.Context, to, name, token string) error

	// SendPasswordResetEmail sends the password-reset link for token.
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}
