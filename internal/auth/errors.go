// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import "errors"

// Sentinel errors for the client-facing outcome taxonomy. Services wrap
// these with oops codes and context; transports branch on errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredential is returned when no credential path matches.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrAccountLocked is returned when the failed-recovery threshold
	// has been reached.
	ErrAccountLocked = errors.New("account locked")

	// ErrCodeAlreadyConsumed is returned when a registration code that
	// was already spent is presented again.
	ErrCodeAlreadyConsumed = errors.New("registration code already consumed")

	// ErrAccountBanned is returned when a banned account attempts login
	// with otherwise valid credentials.
	ErrAccountBanned = errors.New("account banned")

	// ErrNotAuthenticated is returned when a request carries no valid
	// credential.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotLoggedIn is returned when logout finds no token to revoke.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrVersionConflict is returned by account updates when the stored
	// row changed since it was read.
	ErrVersionConflict = errors.New("account version conflict")
)
