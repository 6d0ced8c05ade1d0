// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/grundev/swiftarr/internal/auth"
	authpg "github.com/grundev/swiftarr/internal/auth/postgres"
	"github.com/grundev/swiftarr/internal/config"
	"github.com/grundev/swiftarr/internal/httpapi"
	"github.com/grundev/swiftarr/internal/logging"
	"github.com/grundev/swiftarr/internal/observability"
	"github.com/grundev/swiftarr/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth server",
		Long: `Start the HTTP auth server along with its metrics and health
probe endpoints. Requires a migrated PostgreSQL database.`,
		RunE: runServe,
	}

	cmd.Flags().String("server.addr", "", "API listen address")
	cmd.Flags().String("observability.addr", "", "metrics/health listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (text, json)")
	cmd.Flags().Bool("auto-migrate", false, "run pending migrations before serving")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("swiftarr", version, cfg.Log.Level, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if autoMigrate, _ := cmd.Flags().GetBool("auto-migrate"); autoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	st, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer st.Close()

	service, err := buildAuthService(st, cfg, logger)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return st.Ping(pingCtx) == nil
	})

	handler, err := httpapi.NewAuthHandlerWithLogger(service, obsServer.Metrics(), logger)
	if err != nil {
		return err
	}
	apiServer, err := httpapi.NewServerWithLogger(cfg.Server.Addr, handler, logger)
	if err != nil {
		return err
	}

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.With("operation", "start_observability_server").Wrap(err)
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
		return oops.With("operation", "start_api_server").Wrap(err)
	}

	logger.Info("auth server ready",
		"api_addr", apiServer.Addr(),
		"observability_addr", obsServer.Addr(),
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-apiErrCh:
	case serveErr = <-obsErrCh:
	}

	logger.Info("shutting down...")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(stopCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(stopCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

// buildAuthService wires the repositories and domain services on top of the
// store's connection pool.
func buildAuthService(st *store.Store, cfg *config.Config, logger *slog.Logger) (*auth.Service, error) {
	accountRepo := authpg.NewAccountRepository(st.Pool())
	tokenRepo := authpg.NewTokenRepository(st.Pool())

	registry, err := auth.NewTokenRegistryWithLogger(tokenRepo, logger)
	if err != nil {
		return nil, err
	}

	secrets := auth.NewArgon2idVerifier(cfg.Auth.MaxHashConcurrency)
	verifier, err := auth.NewRecoveryVerifier(secrets)
	if err != nil {
		return nil, err
	}
	limiter := auth.NewAttemptLimiter(auth.MaxRecoveryAttempts)

	return auth.NewServiceWithLogger(accountRepo, registry, verifier, limiter, secrets, logger)
}
