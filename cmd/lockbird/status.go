// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package main

import (
	"encoding/json"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lockbird/lockbird/internal/store"
)

// SchemaStatus reports the current database schema state.
type SchemaStatus struct {
	Version string   `json:"version"`
	Dirty   bool     `json:"dirty"`
	Pending []string `json:"pending"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database schema status",
		Long:  `Show the applied schema version and any pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd, cfg.Database.URL, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("database.url", "", "PostgreSQL connection string")

	return cmd
}

func runStatus(cmd *cobra.Command, databaseURL string, jsonOutput bool) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}

	status := SchemaStatus{
		Version: "none",
		Dirty:   dirty,
		Pending: make([]string, 0, len(pending)),
	}
	if version > 0 {
		if status.Version, err = store.MigrationName(version); err != nil {
			return err
		}
	}
	for _, v := range pending {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil {
			return nameErr
		}
		status.Pending = append(status.Pending, name)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Schema version: %s\n", status.Version)
	if status.Dirty {
		cmd.Println("State: DIRTY (a migration failed partway; fix manually and use --force)")
	}
	if len(status.Pending) == 0 {
		cmd.Println("Pending: none")
	} else {
		cmd.Println("Pending:")
		for _, name := range status.Pending {
			cmd.Printf("  %s\n", name)
		}
	}
	return nil
}
