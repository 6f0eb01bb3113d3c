// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lockbird/lockbird/internal/auth/postgres"
	"github.com/lockbird/lockbird/internal/store"
)

// reapCounts holds the number of rows removed per table.
type reapCounts struct {
	Sessions      int64
	Verifications int64
	Resets        int64
}

// NewReapCmd creates the reap subcommand.
// Expired rows are also evicted lazily on read; this command exists so a
// scheduled job can keep the tables from accumulating rows nobody reads.
func NewReapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete expired sessions and tokens",
		Long: `Delete all expired sessions, email verification tokens, and password
reset tokens. Intended to run periodically from a scheduler.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runReap(cmd.Context(), cmd, cfg.Database.URL)
		},
	}

	cmd.Flags().String("database.url", "", "PostgreSQL connection string")

	return cmd
}

func runReap(ctx context.Context, cmd *cobra.Command, databaseURL string) error {
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	counts, err := reapExpired(ctx, pool)
	if err != nil {
		return err
	}

	slog.Info("reap complete",
		"sessions", counts.Sessions,
		"verifications", counts.Verifications,
		"resets", counts.Resets,
	)
	cmd.Printf("Deleted %d session(s), %d verification token(s), %d reset token(s)\n",
		counts.Sessions, counts.Verifications, counts.Resets)
	return nil
}

func reapExpired(ctx context.Context, db postgres.Querier) (reapCounts, error) {
	repos := postgres.Repos(db)
	var counts reapCounts
	var err error

	if counts.Sessions, err = repos.Sessions.DeleteExpired(ctx); err != nil {
		return counts, err
	}
	if counts.Verifications, err = repos.Verifications.DeleteExpired(ctx); err != nil {
		return counts, err
	}
	if counts.Resets, err = repos.Resets.DeleteExpired(ctx); err != nil {
		return counts, err
	}
	return counts, nil
}
