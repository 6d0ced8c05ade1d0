// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenValueBytes is the entropy of a bearer token value. 16 random bytes
// base64-encode to the 24-character strings clients present on every request.
const TokenValueBytes = 16

// Token is an opaque bearer credential bound to exactly one account. For any
// account at most one non-revoked token exists at any time; login, recovery,
// and logout all preserve that invariant through TokenRegistry.
type Token struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Value     string
	IssuedAt  time.Time
}

// NewToken creates a token for an account with a freshly generated value.
func NewToken(accountID ulid.ULID) (*Token, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	value, err := GenerateTokenValue()
	if err != nil {
		return nil, err
	}
	return &Token{
		ID:        ulid.Make(),
		AccountID: accountID,
		Value:     value,
		IssuedAt:  time.Now(),
	}, nil
}

// GenerateTokenValue creates a high-entropy random token string. The value
// is stored as-is: idempotent issuance must hand the identical string back
// on repeat logins, so hashing at rest is not an option here.
func GenerateTokenValue() (string, error) {
	buf := make([]byte, TokenValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenValueBytes).
			Wrap(err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// TokenRepository manages token persistence.
type TokenRepository interface {
	// CreateIfAbsent inserts the token unless the account already has one.
	// Returns created=false without error when another token won the race;
	// callers then re-read with GetByAccount.
	CreateIfAbsent(ctx context.Context, token *Token) (created bool, err error)

	// GetByAccount retrieves the account's live token.
	// Returns ErrNotFound if the account has none.
	GetByAccount(ctx context.Context, accountID ulid.ULID) (*Token, error)

	// GetByValue retrieves a token by its opaque value.
	// Returns ErrNotFound if no such token exists.
	GetByValue(ctx context.Context, value string) (*Token, error)

	// DeleteByAccount removes the account's token. Returns ErrNotFound
	// if the account had none.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) error
}
