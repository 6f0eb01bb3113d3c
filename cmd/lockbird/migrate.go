// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lockbird/lockbird/internal/store"
)

// migrateConfig holds flags for the migrate subcommand.
type migrateConfig struct {
	down  bool
	force int
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	mcfg := &migrateConfig{force: -1}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply all pending database migrations. With --down, roll back every
migration instead (destructive: drops all tables and data). With
--force N, set the schema version without running migrations, for
recovering from a dirty state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runMigrate(cmd, mcfg, cfg.Database.URL)
		},
	}

	cmd.Flags().BoolVar(&mcfg.down, "down", false, "roll back all migrations (destructive)")
	cmd.Flags().IntVar(&mcfg.force, "force", -1, "force schema version without running migrations")
	cmd.Flags().String("database.url", "", "PostgreSQL connection string")

	return cmd
}

func runMigrate(cmd *cobra.Command, mcfg *migrateConfig, databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	switch {
	case mcfg.force >= 0:
		if err := migrator.Force(mcfg.force); err != nil {
			return err
		}
		cmd.Printf("Schema version forced to %d\n", mcfg.force)
	case mcfg.down:
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("All migrations rolled back")
	default:
		pending, err := migrator.PendingMigrations()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			cmd.Println("Database schema up to date")
			return nil
		}
		if err := migrator.Up(); err != nil {
			return err
		}
		cmd.Printf("Applied %d migration(s)\n", len(pending))
	}
	return nil
}
