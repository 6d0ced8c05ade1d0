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

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account at version 1.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	var parentID *string
	if account.ParentID != nil {
		s := account.ParentID.String()
		parentID = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, recovery_key_hash,
			verification_code, verification_state, access_level,
			recovery_attempts, parent_id, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		account.RecoveryKeyHash,
		nullIfEmpty(account.VerificationCode),
		account.VerificationState.String(),
		account.AccessLevel.String(),
		account.RecoveryAttempts,
		parentID,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	account.Version = 1
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, recovery_key_hash,
		       verification_code, verification_state, access_level,
		       recovery_attempts, parent_id, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, recovery_key_hash,
		       verification_code, verification_state, access_level,
		       recovery_attempts, parent_id, version, created_at, updated_at
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// Update applies the account's mutable security fields with an optimistic
// version check. The write only lands when the stored version still matches
// the one the caller read; a concurrent writer surfaces as
// auth.ErrVersionConflict so the caller can re-read and retry.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	var parentID *string
	if account.ParentID != nil {
		s := account.ParentID.String()
		parentID = &s
	}

	var newVersion int64
	err := r.db.QueryRow(ctx, `
		UPDATE accounts SET
			password_hash = $3,
			recovery_key_hash = $4,
			verification_code = $5,
			verification_state = $6,
			access_level = $7,
			recovery_attempts = $8,
			parent_id = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`,
		account.ID.String(),
		account.Version,
		account.PasswordHash,
		account.RecoveryKeyHash,
		nullIfEmpty(account.VerificationCode),
		account.VerificationState.String(),
		account.AccessLevel.String(),
		account.RecoveryAttempts,
		parentID,
		account.UpdatedAt,
	).Scan(&newVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.classifyUpdateMiss(ctx, account)
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	account.Version = newVersion
	return nil
}

// classifyUpdateMiss distinguishes a version conflict from a deleted row.
func (r *AccountRepository) classifyUpdateMiss(ctx context.Context, account *auth.Account) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`,
		account.ID.String(),
	).Scan(&exists)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "classify update miss").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if !exists {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return oops.Code("ACCOUNT_VERSION_CONFLICT").
		With("id", account.ID.String()).
		With("read_version", account.Version).
		Wrap(auth.ErrVersionConflict)
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single account row.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account     auth.Account
		idStr       string
		code        *string
		stateStr    string
		levelStr    string
		parentIDStr *string
	)
	err := row.Scan(
		&idStr,
		&account.Username,
		&account.PasswordHash,
		&account.RecoveryKeyHash,
		&code,
		&stateStr,
		&levelStr,
		&account.RecoveryAttempts,
		&parentIDStr,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	if code != nil {
		account.VerificationCode = *code
	}
	account.VerificationState, err = auth.ParseVerificationState(stateStr)
	if err != nil {
		return nil, err
	}
	account.AccessLevel, err = auth.ParseAccessLevel(levelStr)
	if err != nil {
		return nil, err
	}
	if parentIDStr != nil {
		parentID, err := ulid.Parse(*parentIDStr)
		if err != nil {
			return nil, oops.Code("ACCOUNT_CORRUPT_PARENT_ID").
				With("parent_id", *parentIDStr).
				Wrap(err)
		}
		account.ParentID = &parentID
	}
	return &account, nil
}

// nullIfEmpty maps an empty string to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
