// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/lockbird/lockbird/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Lockbird CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lockbird",
		Short: "Lockbird - credential and session lifecycle service",
		Long: `Lockbird is an authentication service handling registration,
password login, email verification, password reset, and session
validation over an HTTP API backed by PostgreSQL.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewReapCmd())

	return cmd
}

// loadConfig builds the effective configuration from the config file and
// any flags registered on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
