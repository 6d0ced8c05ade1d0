// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 2
	MaxUsernameLength = 50
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// AccessLevel is the ordered privilege tier of an account.
type AccessLevel int

// Access levels in ascending order of privilege. Banned is the only tier
// that unconditionally blocks authentication.
const (
	AccessLevelUnverified AccessLevel = iota
	AccessLevelBanned
	AccessLevelQuarantined
	AccessLevelVerified
	AccessLevelClient
	AccessLevelModerator
	AccessLevelAdmin
)

var accessLevelNames = map[AccessLevel]string{
	AccessLevelUnverified:  "unverified",
	AccessLevelBanned:      "banned",
	AccessLevelQuarantined: "quarantined",
	AccessLevelVerified:    "verified",
	AccessLevelClient:      "client",
	AccessLevelModerator:   "moderator",
	AccessLevelAdmin:       "admin",
}

// String returns the storage name of the access level.
func (l AccessLevel) String() string {
	if name, ok := accessLevelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseAccessLevel converts a storage name back into an AccessLevel.
func ParseAccessLevel(name string) (AccessLevel, error) {
	for level, n := range accessLevelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, oops.Code("AUTH_INVALID_ACCESS_LEVEL").
		With("name", name).
		Errorf("unknown access level %q", name)
}

// VerificationState tracks the lifecycle of an account's one-time
// registration code.
type VerificationState int

const (
	// VerificationUnset means no code was ever assigned.
	VerificationUnset VerificationState = iota
	// VerificationActive means the assigned code may still be redeemed once.
	VerificationActive
	// VerificationConsumed means the code was redeemed and can never
	// match again.
	VerificationConsumed
)

var verificationStateNames = map[VerificationState]string{
	VerificationUnset:    "unset",
	VerificationActive:   "active",
	VerificationConsumed: "consumed",
}

// String returns the storage name of the verification state.
func (s VerificationState) String() string {
	if name, ok := verificationStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseVerificationState converts a storage name back into a VerificationState.
func ParseVerificationState(name string) (VerificationState, error) {
	for state, n := range verificationStateNames {
		if n == name {
			return state, nil
		}
	}
	return 0, oops.Code("AUTH_INVALID_VERIFICATION_STATE").
		With("name", name).
		Errorf("unknown verification state %q", name)
}

// Account represents one registered identity. Sub-accounts reference their
// primary account via ParentID but are independent rows.
type Account struct {
	ID                ulid.ULID
	Username          string
	PasswordHash      string
	RecoveryKeyHash   string
	VerificationCode  string
	VerificationState VerificationState
	AccessLevel       AccessLevel
	RecoveryAttempts  int
	ParentID          *ulid.ULID
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount creates a validated Account. passwordHash and recoveryKeyHash
// must already be hashed; plaintext secrets never reach this constructor.
func NewAccount(username, passwordHash, recoveryKeyHash string, level AccessLevel) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("password hash cannot be empty")
	}
	if recoveryKeyHash == "" {
		return nil, oops.Code("AUTH_INVALID_ACCOUNT").Errorf("recovery key hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:              ulid.Make(),
		Username:        username,
		PasswordHash:    passwordHash,
		RecoveryKeyHash: recoveryKeyHash,
		AccessLevel:     level,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AssignVerificationCode sets the one-time registration code. The code is
// normalized before storage so recovery comparison is exact.
func (a *Account) AssignVerificationCode(code string) {
	a.VerificationCode = NormalizeRecoveryInput(code)
	a.VerificationState = VerificationActive
	a.UpdatedAt = time.Now()
}

// ConsumeVerificationCode marks the code as spent. The raw code value is
// kept so a consumed code stays distinguishable from an unissued one.
func (a *Account) ConsumeVerificationCode() {
	a.VerificationState = VerificationConsumed
	a.UpdatedAt = time.Now()
}

// RecordRecoveryFailure increments the consecutive failed-recovery counter.
func (a *Account) RecordRecoveryFailure() {
	a.RecoveryAttempts++
	a.UpdatedAt = time.Now()
}

// RecordRecoverySuccess resets the failed-recovery counter.
func (a *Account) RecordRecoverySuccess() {
	a.RecoveryAttempts = 0
	a.UpdatedAt = time.Now()
}

// IsBanned returns true if the account's access level blocks authentication.
func (a *Account) IsBanned() bool {
	return a.AccessLevel == AccessLevelBanned
}

// NormalizeRecoveryInput lowercases the input and removes literal space
// characters. Other whitespace is untouched. Registration codes and recovery
// keys are normalized this way both at storage time and at comparison time,
// to tolerate user-entered formatting variance.
func NormalizeRecoveryInput(raw string) string {
	return strings.ReplaceAll(strings.ToLower(raw), " ", "")
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Update is version-checked: implementations must only apply the write when
// the stored row still carries the version the caller read, return
// ErrVersionConflict otherwise, and increment the version on success. The
// recovery flow relies on this to serialize read-check-mutate-write
// sequences on the same account across processes.
type AccountRepository interface {
	// Create stores a new account.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Update applies the account's mutable security fields if the stored
	// version matches account.Version. On success the in-memory version
	// is advanced to the stored one.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
