// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// recoveryRetries bounds how often a recovery attempt re-runs after losing a
// version race on the account row. Each retry re-reads fresh state, so the
// loser of a code-consumption race observes the consumed code.
const recoveryRetries = 3

// dummySecretHash is used when a username doesn't exist to prevent timing
// attacks. Verification still runs to keep response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any
// password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummySecretHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service orchestrates login, logout, and recovery. Per-account state is
// observable only through token existence: an account is authenticated
// exactly when a live token exists, and re-entering login or recovery while
// authenticated returns the same token rather than minting a second one.
type Service struct {
	accounts AccountRepository
	registry *TokenRegistry
	verifier *RecoveryVerifier
	limiter  *AttemptLimiter
	secrets  SecretVerifier
	logger   *slog.Logger
}

// NewService creates a Service with a no-op logger.
func NewService(accounts AccountRepository, registry *TokenRegistry, verifier *RecoveryVerifier, limiter *AttemptLimiter, secrets SecretVerifier) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if registry == nil {
		return nil, oops.Errorf("token registry is required")
	}
	if verifier == nil {
		return nil, oops.Errorf("recovery verifier is required")
	}
	if limiter == nil {
		return nil, oops.Errorf("attempt limiter is required")
	}
	if secrets == nil {
		return nil, oops.Errorf("secret verifier is required")
	}
	return &Service{
		accounts: accounts,
		registry: registry,
		verifier: verifier,
		limiter:  limiter,
		secrets:  secrets,
		logger:   slog.New(slog.DiscardHandler),
	}, nil
}

// NewServiceWithLogger creates a Service with the provided logger.
func NewServiceWithLogger(accounts AccountRepository, registry *TokenRegistry, verifier *RecoveryVerifier, limiter *AttemptLimiter, secrets SecretVerifier, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewService(accounts, registry, verifier, limiter, secrets)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// AuthenticateBasic verifies a username/password pair and returns the
// account. This is the primary-credential check that fronts Login. It never
// touches the recovery attempt counter. Uses a dummy hash for unknown
// usernames so lookup misses cost the same as mismatches.
func (s *Service) AuthenticateBasic(ctx context.Context, username, password string) (*Account, error) {
	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	targetHash := dummySecretHash
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get account by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
	}

	valid, verifyErr := s.secrets.Verify(ctx, password, targetHash)
	if verifyErr != nil {
		if lookupErr != nil {
			// Dummy hash verification errors just mean invalid.
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrNotAuthenticated)
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if lookupErr != nil || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrNotAuthenticated)
	}
	return account, nil
}

// AuthenticateToken resolves a bearer token value to its account.
func (s *Service) AuthenticateToken(ctx context.Context, value string) (*Account, error) {
	if value == "" {
		return nil, oops.Code("AUTH_TOKEN_EMPTY").Wrap(ErrNotAuthenticated)
	}
	token, err := s.registry.tokens.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_INVALID_TOKEN").Wrap(ErrNotAuthenticated)
		}
		return nil, oops.Code("AUTH_TOKEN_LOOKUP_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}
	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Token outlived its account; treat as unauthenticated.
			return nil, oops.Code("AUTH_INVALID_TOKEN").Wrap(ErrNotAuthenticated)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account, nil
}

// Login issues a token for an account whose primary credential has already
// been verified by AuthenticateBasic. Banned accounts are rejected here,
// after primary-credential success, so a banned user cannot distinguish
// "wrong password" from "banned" by timing.
func (s *Service) Login(ctx context.Context, account *Account) (*Token, error) {
	if account.IsBanned() {
		return nil, oops.Code("AUTH_ACCOUNT_BANNED").
			With("username", account.Username).
			Wrap(ErrAccountBanned)
	}

	token, err := s.registry.GetOrCreate(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login succeeded",
		"username", account.Username,
		"account_id", account.ID.String())
	return token, nil
}

// Logout revokes the account's token. A missing token surfaces as
// ErrNotLoggedIn; clients see it as a conflict, not a silent success.
func (s *Service) Logout(ctx context.Context, account *Account) error {
	if err := s.registry.Revoke(ctx, account); err != nil {
		return err
	}
	s.logger.Info("logout succeeded",
		"username", account.Username,
		"account_id", account.ID.String())
	return nil
}

// Recover authenticates with any one of the alternate credentials and issues
// a token. A nonexistent username fails without touching any attempt
// counter. The account's counter and code state are persisted with a version
// check; losing the version race re-runs the whole attempt against fresh
// state so exactly one concurrent request can consume a registration code.
func (s *Service) Recover(ctx context.Context, username, rawInput string) (*Token, error) {
	var token *Token

	backoff := retry.WithMaxRetries(recoveryRetries, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		account, err := s.accounts.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("AUTH_ACCOUNT_NOT_FOUND").
					With("username", username).
					Wrap(ErrNotFound)
			}
			return oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get account by username").
				Wrap(err)
		}

		if err := s.limiter.CheckAllowed(account); err != nil {
			return err
		}

		outcome, matchErr := s.verifier.Match(ctx, account, rawInput)
		if matchErr != nil && !errors.Is(matchErr, ErrCodeAlreadyConsumed) {
			// Infrastructure fault; state was not mutated meaningfully.
			return matchErr
		}

		if err := s.accounts.Update(ctx, account); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return oops.Code("AUTH_PERSIST_FAILED").
				With("operation", "update account after recovery attempt").
				Wrap(err)
		}

		if matchErr != nil {
			return matchErr
		}
		if outcome == MatchNone {
			return oops.Code("AUTH_INVALID_CREDENTIALS").
				With("username", username).
				Wrap(ErrInvalidCredential)
		}

		token, err = s.registry.GetOrCreate(ctx, account)
		if err != nil {
			return err
		}
		s.logger.Info("recovery succeeded",
			"username", account.Username,
			"account_id", account.ID.String(),
			"outcome", outcome.String())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, oops.Code("AUTH_RECOVERY_CONTENTION").
				With("username", username).
				Wrap(err)
		}
		return nil, err
	}
	return token, nil
}
