// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/grundev/swiftarr/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Swiftarr CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swiftarr",
		Short: "Swiftarr - shipboard authentication service",
		Long: `Swiftarr provides credential verification and token lifecycle
management: login, logout, and multi-credential account recovery.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// loadConfig builds the configuration from the global --config flag plus the
// command's own flag set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
