// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// MatchOutcome identifies which credential path satisfied a recovery attempt.
type MatchOutcome int

const (
	// MatchNone means no credential path matched.
	MatchNone MatchOutcome = iota
	// MatchVerificationCode means the one-time registration code matched
	// and was consumed by this attempt.
	MatchVerificationCode
	// MatchPassword means the account password matched.
	MatchPassword
	// MatchRecoveryKey means the recovery key matched.
	MatchRecoveryKey
)

var matchOutcomeNames = map[MatchOutcome]string{
	MatchNone:             "none",
	MatchVerificationCode: "verification-code",
	MatchPassword:         "password",
	MatchRecoveryKey:      "recovery-key",
}

// String returns a stable name for the outcome, used in logs and metrics.
func (o MatchOutcome) String() string {
	if name, ok := matchOutcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// credentialStrategy is one named way a recovery input can prove identity.
// Strategies are tried in a fixed order; the first match wins. Adding a
// credential type means adding a strategy, not rewriting a conditional.
type credentialStrategy interface {
	// name identifies the strategy in logs.
	name() string

	// attempt reports whether the input satisfies this credential path.
	// raw is the input as submitted; normalized is lowercased with literal
	// spaces stripped.
	attempt(ctx context.Context, account *Account, raw, normalized string) (bool, error)
}

// verificationCodeStrategy matches the one-time registration code. Codes are
// stored in normalized plaintext, not hashed, so comparison is exact.
type verificationCodeStrategy struct{}

func (verificationCodeStrategy) name() string { return "verification-code" }

func (verificationCodeStrategy) attempt(_ context.Context, account *Account, _, normalized string) (bool, error) {
	if account.VerificationState != VerificationActive {
		return false, nil
	}
	return normalized == account.VerificationCode, nil
}

// passwordStrategy matches the account password. Passwords are case- and
// space-sensitive, so the raw input is verified unnormalized.
type passwordStrategy struct {
	secrets SecretVerifier
}

func (passwordStrategy) name() string { return "password" }

func (s passwordStrategy) attempt(ctx context.Context, account *Account, raw, _ string) (bool, error) {
	ok, err := s.secrets.Verify(ctx, raw, account.PasswordHash)
	if err != nil {
		return false, oops.Code("AUTH_VERIFY_FAILED").
			With("strategy", "password").
			Wrap(err)
	}
	return ok, nil
}

// recoveryKeyStrategy matches the recovery key, which is normalized prior to
// hashing at account creation.
type recoveryKeyStrategy struct {
	secrets SecretVerifier
}

func (recoveryKeyStrategy) name() string { return "recovery-key" }

func (s recoveryKeyStrategy) attempt(ctx context.Context, account *Account, _, normalized string) (bool, error) {
	ok, err := s.secrets.Verify(ctx, normalized, account.RecoveryKeyHash)
	if err != nil {
		return false, oops.Code("AUTH_VERIFY_FAILED").
			With("strategy", "recovery-key").
			Wrap(err)
	}
	return ok, nil
}

// RecoveryVerifier determines which of the alternate credentials, if any, a
// raw recovery input matches.
type RecoveryVerifier struct {
	strategies []credentialStrategy
}

// NewRecoveryVerifier creates a RecoveryVerifier with the standard strategy
// order: verification code, then password, then recovery key.
func NewRecoveryVerifier(secrets SecretVerifier) (*RecoveryVerifier, error) {
	if secrets == nil {
		return nil, oops.Errorf("secret verifier is required")
	}
	return &RecoveryVerifier{
		strategies: []credentialStrategy{
			verificationCodeStrategy{},
			passwordStrategy{secrets: secrets},
			recoveryKeyStrategy{secrets: secrets},
		},
	}, nil
}

// Match runs the strategies in order against the raw input and mutates the
// account with the terminal outcome: a match consumes an active code (when
// the code path won) and resets the failed-attempt counter; no match, or a
// replayed consumed code, increments it. The caller persists the account.
//
// A consumed code still counts toward lockout; see DESIGN.md before changing
// the policy.
func (v *RecoveryVerifier) Match(ctx context.Context, account *Account, rawInput string) (MatchOutcome, error) {
	normalized := NormalizeRecoveryInput(rawInput)

	// Replay guard: an input that normalizes to registration-code length
	// against an already-consumed code is most likely a stale code an
	// attacker has learned. Refuse before any hash comparison so it cannot
	// be confused with a recovery key.
	if len(normalized) == RegistrationCodeLength && account.VerificationState == VerificationConsumed {
		account.RecordRecoveryFailure()
		return MatchNone, oops.Code("AUTH_CODE_CONSUMED").
			With("username", account.Username).
			Wrap(ErrCodeAlreadyConsumed)
	}

	for _, strategy := range v.strategies {
		ok, err := strategy.attempt(ctx, account, rawInput, normalized)
		if err != nil {
			return MatchNone, err
		}
		if !ok {
			continue
		}

		outcome := MatchNone
		switch strategy.(type) {
		case verificationCodeStrategy:
			account.ConsumeVerificationCode()
			outcome = MatchVerificationCode
		case passwordStrategy:
			outcome = MatchPassword
		case recoveryKeyStrategy:
			outcome = MatchRecoveryKey
		}
		account.RecordRecoverySuccess()
		return outcome, nil
	}

	account.RecordRecoveryFailure()
	return MatchNone, nil
}
