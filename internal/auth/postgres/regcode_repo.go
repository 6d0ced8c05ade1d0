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

// RegistrationCodeRepository implements auth.RegistrationCodeRepository
// using PostgreSQL.
type RegistrationCodeRepository struct {
	db DB
}

// NewRegistrationCodeRepository creates a new RegistrationCodeRepository.
func NewRegistrationCodeRepository(db DB) *RegistrationCodeRepository {
	return &RegistrationCodeRepository{db: db}
}

// Create stores a new pool entry.
func (r *RegistrationCodeRepository) Create(ctx context.Context, code *auth.RegistrationCode) error {
	var assignedTo *string
	if code.AssignedTo != nil {
		s := code.AssignedTo.String()
		assignedTo = &s
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO registration_codes (id, code, assigned_to, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		code.ID.String(),
		code.Code,
		assignedTo,
		code.CreatedAt,
	)
	if err != nil {
		return oops.Code("REGCODE_CREATE_FAILED").
			With("operation", "insert registration code").
			Wrap(err)
	}
	return nil
}

// GetByCode retrieves a pool entry by normalized code value.
func (r *RegistrationCodeRepository) GetByCode(ctx context.Context, code string) (*auth.RegistrationCode, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, code, assigned_to, created_at
		FROM registration_codes
		WHERE code = $1
	`, code)

	var (
		entry         auth.RegistrationCode
		idStr         string
		assignedToStr *string
	)
	err := row.Scan(&idStr, &entry.Code, &assignedToStr, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REGCODE_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REGCODE_GET_FAILED").
			With("operation", "get registration code").
			Wrap(err)
	}

	entry.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REGCODE_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	if assignedToStr != nil {
		assignedTo, err := ulid.Parse(*assignedToStr)
		if err != nil {
			return nil, oops.Code("REGCODE_CORRUPT_ASSIGNMENT").
				With("assigned_to", *assignedToStr).
				Wrap(err)
		}
		entry.AssignedTo = &assignedTo
	}
	return &entry, nil
}

// Assign records which account a code was handed to.
func (r *RegistrationCodeRepository) Assign(ctx context.Context, id ulid.ULID, accountID ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE registration_codes SET assigned_to = $2 WHERE id = $1
	`, id.String(), accountID.String())
	if err != nil {
		return oops.Code("REGCODE_ASSIGN_FAILED").
			With("operation", "assign registration code").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REGCODE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}
