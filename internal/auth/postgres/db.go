// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

// Package postgres implements the auth repositories using PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/lockbird/lockbird/internal/auth"
)

// Querier is the subset of pgx used by the repositories. It is satisfied
// by *pgxpool.Pool, pgx.Tx, and pgxmock pools, so the same repository code
// serves plain calls, transactions, and unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool and pgxmock pools satisfy it.
type Beginner interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repos builds the full repository set over a single Querier.
func Repos(db Querier) auth.Repos {
	return auth.Repos{
		Users:         NewUserRepository(db),
		Sessions:      NewSessionRepository(db),
		Verifications: NewVerificationRepository(db),
		Resets:        NewResetRepository(db),
	}
}

// UnitOfWork implements auth.TxRunner over a pgx pool: fn runs against
// repositories bound to one transaction, committed only if fn returns nil.
type UnitOfWork struct {
	db Beginner
}

// NewUnitOfWork creates a UnitOfWork.
func NewUnitOfWork(db Beginner) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// InTx executes fn atomically. Context cancellation aborts the transaction;
// the rollback leaves no half-applied state behind.
func (u *UnitOfWork) InTx(ctx context.Context, fn func(auth.Repos) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	// Rollback after commit is a harmless no-op.
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // deferred rollback is best effort

	if err := fn(Repos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.TxRunner = (*UnitOfWork)(nil)
