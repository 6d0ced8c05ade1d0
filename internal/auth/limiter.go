// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import "github.com/samber/oops"

// MaxRecoveryAttempts is the number of consecutive failed recovery matches
// after which an account is locked out of recovery.
const MaxRecoveryAttempts = 5

// AttemptLimiter enforces the brute-force lockout threshold on recovery.
// The check runs before any credential comparison so a locked account never
// leaks whether a given input would have matched.
type AttemptLimiter struct {
	threshold int
}

// NewAttemptLimiter creates an AttemptLimiter. Zero or negative threshold
// means the default of MaxRecoveryAttempts.
func NewAttemptLimiter(threshold int) *AttemptLimiter {
	if threshold <= 0 {
		threshold = MaxRecoveryAttempts
	}
	return &AttemptLimiter{threshold: threshold}
}

// CheckAllowed returns ErrAccountLocked when the account has reached the
// failed-attempt threshold, nil otherwise.
func (l *AttemptLimiter) CheckAllowed(account *Account) error {
	if account.RecoveryAttempts >= l.threshold {
		return oops.Code("AUTH_ACCOUNT_LOCKED").
			With("username", account.Username).
			With("attempts", account.RecoveryAttempts).
			Wrap(ErrAccountLocked)
	}
	return nil
}
