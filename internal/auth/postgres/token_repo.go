// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/grundev/swiftarr/internal/auth"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL. The
// tokens table carries a uniqueness constraint on account_id; that
// constraint, not application logic, is what holds the one-token-per-account
// invariant under concurrency.
type TokenRepository struct {
	db DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateIfAbsent inserts the token unless the account already has one.
func (r *TokenRepository) CreateIfAbsent(ctx context.Context, token *auth.Token) (bool, error) {
	result, err := r.db.Exec(ctx, `
		INSERT INTO tokens (id, account_id, value, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO NOTHING
	`,
		token.ID.String(),
		token.AccountID.String(),
		token.Value,
		token.IssuedAt,
	)
	if err != nil {
		return false, oops.Code("TOKEN_INSERT_FAILED").
			With("operation", "insert token").
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByAccount retrieves the account's live token.
func (r *TokenRepository) GetByAccount(ctx context.Context, accountID ulid.ULID) (*auth.Token, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, value, issued_at
		FROM tokens
		WHERE account_id = $1
	`, accountID.String())

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_ACCOUNT_FAILED").
			With("operation", "get token by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return token, nil
}

// GetByValue retrieves a token by its opaque value.
func (r *TokenRepository) GetByValue(ctx context.Context, value string) (*auth.Token, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, value, issued_at
		FROM tokens
		WHERE value = $1
	`, value)

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_VALUE_FAILED").
			With("operation", "get token by value").
			Wrap(err)
	}
	return token, nil
}

// DeleteByAccount removes the account's token. The delete and the
// existence check are one statement, so concurrent logouts cannot both
// observe success.
func (r *TokenRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM tokens WHERE account_id = $1`,
		accountID.String(),
	)
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete token by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("account_id", accountID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanToken scans a single token row.
func scanToken(row pgx.Row) (*auth.Token, error) {
	var (
		token        auth.Token
		idStr        string
		accountIDStr string
	)
	err := row.Scan(&idStr, &accountIDStr, &token.Value, &token.IssuedAt)
	if err != nil {
		return nil, err
	}

	token.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	token.AccountID, err = ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.Code("TOKEN_CORRUPT_ACCOUNT_ID").
			With("account_id", accountIDStr).
			Wrap(err)
	}
	return &token, nil
}
