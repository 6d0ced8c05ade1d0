// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

// Package seed loads the registration code pool and pre-registered client
// accounts from operator-supplied text files. Seeding is idempotent: entries
// already present in the database are skipped.
package seed

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/grundev/swiftarr/internal/auth"
)

// Client is one pre-registered client account parsed from the clients file.
type Client struct {
	Username    string
	Password    string
	RecoveryKey string
}

// ParseRegistrationCodes reads whitespace-separated registration codes,
// normalizing each. Any code that does not normalize to the expected length
// aborts the parse so a corrupt pool file never half-seeds.
func ParseRegistrationCodes(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	var codes []string
	for scanner.Scan() {
		code := auth.NormalizeRecoveryInput(scanner.Text())
		if code == "" {
			continue
		}
		if len(code) != auth.RegistrationCodeLength {
			return nil, oops.Code("SEED_INVALID_CODE").
				With("code", code).
				With("position", len(codes)+1).
				Errorf("registration code must normalize to %d characters", auth.RegistrationCodeLength)
		}
		codes = append(codes, code)
	}
	if err := scanner.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	return codes, nil
}

// ParseClients reads client definitions, one "username:password:recovery key"
// triplet per line. Blank lines and lines starting with '#' are skipped.
// Passwords are trimmed of surrounding whitespace; recovery keys keep their
// raw form and are normalized later, at hashing and comparison time.
func ParseClients(r io.Reader) ([]Client, error) {
	scanner := bufio.NewScanner(r)

	var clients []Client
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		parts := strings.SplitN(text, ":", 3)
		if len(parts) != 3 {
			return nil, oops.Code("SEED_INVALID_CLIENT").
				With("line", line).
				Errorf("client line must be username:password:recovery key")
		}
		client := Client{
			Username:    strings.TrimSpace(parts[0]),
			Password:    strings.TrimSpace(parts[1]),
			RecoveryKey: parts[2],
		}
		if err := auth.ValidateUsername(client.Username); err != nil {
			return nil, oops.With("line", line).Wrap(err)
		}
		if client.Password == "" {
			return nil, oops.Code("SEED_INVALID_CLIENT").
				With("line", line).
				Errorf("client password cannot be empty")
		}
		if auth.NormalizeRecoveryInput(client.RecoveryKey) == "" {
			return nil, oops.Code("SEED_INVALID_CLIENT").
				With("line", line).
				Errorf("client recovery key cannot be empty")
		}
		clients = append(clients, client)
	}
	if err := scanner.Err(); err != nil {
		return nil, oops.Wrap(err)
	}
	return clients, nil
}

// Seeder writes parsed seed data through the auth repositories.
type Seeder struct {
	accounts auth.AccountRepository
	regcodes auth.RegistrationCodeRepository
	secrets  auth.SecretVerifier
	logger   *slog.Logger
}

// NewSeeder creates a Seeder with a no-op logger.
func NewSeeder(accounts auth.AccountRepository, regcodes auth.RegistrationCodeRepository, secrets auth.SecretVerifier) (*Seeder, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if regcodes == nil {
		return nil, oops.Errorf("registration code repository is required")
	}
	if secrets == nil {
		return nil, oops.Errorf("secret verifier is required")
	}
	return &Seeder{
		accounts: accounts,
		regcodes: regcodes,
		secrets:  secrets,
		logger:   slog.New(slog.DiscardHandler),
	}, nil
}

// NewSeederWithLogger creates a Seeder with the provided logger.
func NewSeederWithLogger(accounts auth.AccountRepository, regcodes auth.RegistrationCodeRepository, secrets auth.SecretVerifier, logger *slog.Logger) (*Seeder, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	s, err := NewSeeder(accounts, regcodes, secrets)
	if err != nil {
		return nil, err
	}
	s.logger = logger
	return s, nil
}

// SeedRegistrationCodes inserts the parsed code pool, skipping codes that
// already exist. It returns the number of codes inserted.
func (s *Seeder) SeedRegistrationCodes(ctx context.Context, r io.Reader) (int, error) {
	codes, err := ParseRegistrationCodes(r)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, raw := range codes {
		code, err := auth.NewRegistrationCode(raw)
		if err != nil {
			return inserted, err
		}
		if err := s.regcodes.Create(ctx, code); err != nil {
			if isUniqueViolation(err) {
				s.logger.Debug("registration code already seeded", "code", raw)
				continue
			}
			return inserted, err
		}
		inserted++
	}

	s.logger.Info("registration codes seeded",
		"parsed", len(codes),
		"inserted", inserted,
	)
	return inserted, nil
}

// SeedClients hashes each client's credentials and creates the accounts at
// client access level, skipping usernames that already exist. It returns the
// number of accounts created.
func (s *Seeder) SeedClients(ctx context.Context, r io.Reader) (int, error) {
	clients, err := ParseClients(r)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, client := range clients {
		passwordHash, err := s.secrets.Hash(ctx, client.Password)
		if err != nil {
			return created, err
		}
		recoveryHash, err := s.secrets.Hash(ctx, auth.NormalizeRecoveryInput(client.RecoveryKey))
		if err != nil {
			return created, err
		}

		account, err := auth.NewAccount(client.Username, passwordHash, recoveryHash, auth.AccessLevelClient)
		if err != nil {
			return created, err
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			if isUniqueViolation(err) {
				s.logger.Debug("client account already seeded", "username", client.Username)
				continue
			}
			return created, err
		}
		created++
	}

	s.logger.Info("client accounts seeded",
		"parsed", len(clients),
		"created", created,
	)
	return created, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, the signal that a seed entry already exists.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
