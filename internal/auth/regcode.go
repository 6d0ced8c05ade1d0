// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RegistrationCodeLength is the fixed length of a normalized registration
// code. The recovery replay guard keys off this length to tell a stale code
// apart from a recovery key.
const RegistrationCodeLength = 6

// RegistrationCode is one entry of the pre-provisioned one-time code pool.
// A pool entry is independent of any account until assigned; once an
// account's verification code is set, subsequent validity is tracked on the
// account, not here.
type RegistrationCode struct {
	ID         ulid.ULID
	Code       string
	AssignedTo *ulid.ULID
	CreatedAt  time.Time
}

// NewRegistrationCode creates a pool entry from a raw code. The code is
// normalized before storage.
func NewRegistrationCode(raw string) (*RegistrationCode, error) {
	code := NormalizeRecoveryInput(raw)
	if len(code) != RegistrationCodeLength {
		return nil, oops.Code("REGCODE_INVALID").
			With("length", len(code)).
			Errorf("registration code must normalize to %d characters", RegistrationCodeLength)
	}
	return &RegistrationCode{
		ID:        ulid.Make(),
		Code:      code,
		CreatedAt: time.Now(),
	}, nil
}

// RegistrationCodeRepository manages the registration code pool.
type RegistrationCodeRepository interface {
	// Create stores a new pool entry.
	Create(ctx context.Context, code *RegistrationCode) error

	// GetByCode retrieves a pool entry by normalized code value.
	GetByCode(ctx context.Context, code string) (*RegistrationCode, error)

	// Assign records which account a code was handed to.
	Assign(ctx context.Context, id ulid.ULID, accountID ulid.ULID) error
}
