// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// TokenRegistry enforces the at-most-one-live-token-per-account invariant.
// Login and recovery both issue through GetOrCreate, which is how recovery
// yields login-equivalent access without a second step.
type TokenRegistry struct {
	tokens TokenRepository
	logger *slog.Logger
}

// NewTokenRegistry creates a TokenRegistry with a no-op logger.
func NewTokenRegistry(tokens TokenRepository) (*TokenRegistry, error) {
	if tokens == nil {
		return nil, oops.Errorf("token repository is required")
	}
	return &TokenRegistry{
		tokens: tokens,
		logger: slog.New(slog.DiscardHandler),
	}, nil
}

// NewTokenRegistryWithLogger creates a TokenRegistry with the provided logger.
func NewTokenRegistryWithLogger(tokens TokenRepository, logger *slog.Logger) (*TokenRegistry, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	registry, err := NewTokenRegistry(tokens)
	if err != nil {
		return nil, err
	}
	registry.logger = logger
	return registry, nil
}

// GetOrCreate returns the account's existing token, or generates, persists,
// and returns a new one. The insert is insert-if-absent against the storage
// uniqueness constraint on the account; the loser of a concurrent race
// re-reads and returns the winner's token instead of erroring.
func (r *TokenRegistry) GetOrCreate(ctx context.Context, account *Account) (*Token, error) {
	existing, err := r.tokens.GetByAccount(ctx, account.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by account").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	token, err := NewToken(account.ID)
	if err != nil {
		return nil, err
	}

	created, err := r.tokens.CreateIfAbsent(ctx, token)
	if err != nil {
		return nil, oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if created {
		return token, nil
	}

	// Lost the race: a concurrent login or recovery inserted first.
	r.logger.Debug("token insert lost race, re-reading winner",
		"account_id", account.ID.String())
	winner, err := r.tokens.GetByAccount(ctx, account.ID)
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "re-read token after race").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return winner, nil
}

// Revoke deletes the account's token. A missing token is reported as
// ErrNotLoggedIn rather than silently succeeding, so the conflict stays
// visible to clients and operators.
func (r *TokenRegistry) Revoke(ctx context.Context, account *Account) error {
	err := r.tokens.DeleteByAccount(ctx, account.ID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_NOT_LOGGED_IN").
			With("account_id", account.ID.String()).
			Wrap(ErrNotLoggedIn)
	}
	return oops.Code("TOKEN_REVOKE_FAILED").
		With("operation", "delete token by account").
		With("account_id", account.ID.String()).
		Wrap(err)
}
