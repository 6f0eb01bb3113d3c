// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import "context"

// Repos bundles the repositories participating in an atomic unit of work.
// Inside TxRunner.InTx all of them operate on the same transaction.
type Repos struct {
	Users         UserRepository
	Sessions      SessionRepository
	Verifications VerificationRepository
	Resets        ResetRepository
}

// TxRunner executes a function against a transactional view of the
// repositories: every write inside fn is applied atomically, or none is.
// Dependent writes that must be observed as a unit (supersede-then-issue a
// token, change password then revoke sessions) go through InTx; everything
// else uses the plain repositories.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Repos) error) error
}
