// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/grundev/swiftarr/internal/auth"
	authpg "github.com/grundev/swiftarr/internal/auth/postgres"
	"github.com/grundev/swiftarr/internal/seed"
	"github.com/grundev/swiftarr/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 2 * time.Minute

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	codesFile   string
	clientsFile string
	timeout     time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	seedCfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed registration codes and client accounts",
		Long: `Loads the registration code pool and pre-registered client
accounts from text files. This command is idempotent - entries that already
exist are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, seedCfg)
		},
	}

	cmd.Flags().StringVar(&seedCfg.codesFile, "codes", "", "registration codes file (whitespace-separated codes)")
	cmd.Flags().StringVar(&seedCfg.clientsFile, "clients", "", "client accounts file (username:password:recovery key per line)")
	cmd.Flags().DurationVar(&seedCfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if seedCfg.codesFile == "" && seedCfg.clientsFile == "" {
		return oops.Code("CONFIG_INVALID").Errorf("at least one of --codes or --clients is required")
	}

	// Timeout prevents indefinite hangs; cmd.Context() respects SIGINT/SIGTERM.
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	st, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer st.Close()

	seeder, err := seed.NewSeeder(
		authpg.NewAccountRepository(st.Pool()),
		authpg.NewRegistrationCodeRepository(st.Pool()),
		auth.NewArgon2idVerifier(cfg.Auth.MaxHashConcurrency),
	)
	if err != nil {
		return err
	}

	if seedCfg.codesFile != "" {
		f, err := os.Open(seedCfg.codesFile)
		if err != nil {
			return oops.Code("SEED_FAILED").With("path", seedCfg.codesFile).Wrap(err)
		}
		inserted, seedErr := seeder.SeedRegistrationCodes(ctx, f)
		if closeErr := f.Close(); closeErr != nil && seedErr == nil {
			seedErr = oops.Wrap(closeErr)
		}
		if seedErr != nil {
			return oops.Code("SEED_FAILED").With("operation", "seed registration codes").Wrap(seedErr)
		}
		cmd.Printf("Seeded %d registration codes\n", inserted)
	}

	if seedCfg.clientsFile != "" {
		f, err := os.Open(seedCfg.clientsFile)
		if err != nil {
			return oops.Code("SEED_FAILED").With("path", seedCfg.clientsFile).Wrap(err)
		}
		created, seedErr := seeder.SeedClients(ctx, f)
		if closeErr := f.Close(); closeErr != nil && seedErr == nil {
			seedErr = oops.Wrap(closeErr)
		}
		if seedErr != nil {
			return oops.Code("SEED_FAILED").With("operation", "seed client accounts").Wrap(seedErr)
		}
		cmd.Printf("Seeded %d client accounts\n", created)
	}

	cmd.Println("Seeding complete!")
	return nil
}
