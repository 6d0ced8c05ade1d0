// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

// Package auth provides the credential verification and token lifecycle
// subsystem for Swiftarr.
//
// # Domain Types
//
// Domain types (Account, Token, RegistrationCode) should be created using
// their respective constructors:
//   - NewAccount - creates an Account with validated username and hashes
//   - NewToken - creates a Token bound to an account with a fresh value
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, logout, recovery, and request authentication
//   - RecoveryVerifier - ordered credential strategy matching for recovery
//   - TokenRegistry - at-most-one-live-token issuance and revocation
//   - AttemptLimiter - brute-force lockout on failed recovery attempts
//
// Services are created with New* constructors that validate dependencies.
package auth
