// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grundev/swiftarr/internal/auth"
	"github.com/grundev/swiftarr/internal/auth/mocks"
	"github.com/grundev/swiftarr/pkg/errutil"
)

// testService bundles a Service with the mocks behind it.
type testService struct {
	svc      *auth.Service
	accounts *mocks.MockAccountRepository
	tokens   *mocks.MockTokenRepository
	secrets  *mocks.MockSecretVerifier
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	accounts := mocks.NewMockAccountRepository(t)
	tokens := mocks.NewMockTokenRepository(t)
	secrets := mocks.NewMockSecretVerifier(t)

	registry, err := auth.NewTokenRegistry(tokens)
	require.NoError(t, err)
	verifier, err := auth.NewRecoveryVerifier(secrets)
	require.NoError(t, err)
	limiter := auth.NewAttemptLimiter(auth.MaxRecoveryAttempts)

	svc, err := auth.NewService(accounts, registry, verifier, limiter, secrets)
	require.NoError(t, err)

	return &testService{svc: svc, accounts: accounts, tokens: tokens, secrets: secrets}
}

func TestNewService_NilDependencies(t *testing.T) {
	accounts := mocks.NewMockAccountRepository(t)
	tokens := mocks.NewMockTokenRepository(t)
	secrets := mocks.NewMockSecretVerifier(t)

	registry, err := auth.NewTokenRegistry(tokens)
	require.NoError(t, err)
	verifier, err := auth.NewRecoveryVerifier(secrets)
	require.NoError(t, err)
	limiter := auth.NewAttemptLimiter(0)

	tests := []struct {
		name        string
		build       func() (*auth.Service, error)
		expectError string
	}{
		{
			name: "nil account repository",
			build: func() (*auth.Service, error) {
				return auth.NewService(nil, registry, verifier, limiter, secrets)
			},
			expectError: "account repository is required",
		},
		{
			name: "nil token registry",
			build: func() (*auth.Service, error) {
				return auth.NewService(accounts, nil, verifier, limiter, secrets)
			},
			expectError: "token registry is required",
		},
		{
			name: "nil recovery verifier",
			build: func() (*auth.Service, error) {
				return auth.NewService(accounts, registry, nil, limiter, secrets)
			},
			expectError: "recovery verifier is required",
		},
		{
			name: "nil attempt limiter",
			build: func() (*auth.Service, error) {
				return auth.NewService(accounts, registry, verifier, nil, secrets)
			},
			expectError: "attempt limiter is required",
		},
		{
			name: "nil secret verifier",
			build: func() (*auth.Service, error) {
				return auth.NewService(accounts, registry, verifier, limiter, nil)
			},
			expectError: "secret verifier is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	ts := newTestService(t)

	registry, err := auth.NewTokenRegistry(ts.tokens)
	require.NoError(t, err)
	verifier, err := auth.NewRecoveryVerifier(ts.secrets)
	require.NoError(t, err)

	svc, err := auth.NewServiceWithLogger(ts.accounts, registry, verifier, auth.NewAttemptLimiter(0), ts.secrets, nil)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestService_AuthenticateBasic(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials return the account", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.accounts.On("GetByUsername", ctx, "alice").Return(account, nil)
		ts.secrets.On("Verify", ctx, "password123", "password-hash").Return(true, nil)

		got, err := ts.svc.AuthenticateBasic(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.Same(t, account, got)
	})

	t.Run("unknown username still verifies against a dummy hash", func(t *testing.T) {
		ts := newTestService(t)

		ts.accounts.On("GetByUsername", ctx, "ghost").Return(nil, auth.ErrNotFound)
		ts.secrets.On("Verify", ctx, "password123", mock.AnythingOfType("string")).Return(false, nil)

		got, err := ts.svc.AuthenticateBasic(ctx, "ghost", "password123")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("wrong password fails", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.accounts.On("GetByUsername", ctx, "alice").Return(account, nil)
		ts.secrets.On("Verify", ctx, "wrongpassword", "password-hash").Return(false, nil)

		_, err := ts.svc.AuthenticateBasic(ctx, "alice", "wrongpassword")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})

	t.Run("banned accounts pass the credential check", func(t *testing.T) {
		// Banning is enforced at Login, after credential success.
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.AccessLevel = auth.AccessLevelBanned

		ts.accounts.On("GetByUsername", ctx, "alice").Return(account, nil)
		ts.secrets.On("Verify", ctx, "password123", "password-hash").Return(true, nil)

		got, err := ts.svc.AuthenticateBasic(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.True(t, got.IsBanned())
	})

	t.Run("lookup fault is not an auth failure", func(t *testing.T) {
		ts := newTestService(t)

		ts.accounts.On("GetByUsername", ctx, "alice").Return(nil, assert.AnError)

		_, err := ts.svc.AuthenticateBasic(ctx, "alice", "password123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotAuthenticated)
		errutil.AssertErrorCode(t, err, "AUTH_LOOKUP_FAILED")
	})
}

func TestService_AuthenticateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token resolves the account", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		token := &auth.Token{AccountID: account.ID, Value: "token-value"}

		ts.tokens.On("GetByValue", ctx, "token-value").Return(token, nil)
		ts.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

		got, err := ts.svc.AuthenticateToken(ctx, "token-value")
		require.NoError(t, err)
		assert.Same(t, account, got)
	})

	t.Run("empty token is unauthenticated", func(t *testing.T) {
		ts := newTestService(t)

		_, err := ts.svc.AuthenticateToken(ctx, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})

	t.Run("unknown token is unauthenticated", func(t *testing.T) {
		ts := newTestService(t)

		ts.tokens.On("GetByValue", ctx, "stale-value").Return(nil, auth.ErrNotFound)

		_, err := ts.svc.AuthenticateToken(ctx, "stale-value")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})

	t.Run("token for a deleted account is unauthenticated", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		token := &auth.Token{AccountID: account.ID, Value: "orphan-value"}

		ts.tokens.On("GetByValue", ctx, "orphan-value").Return(token, nil)
		ts.accounts.On("GetByID", ctx, account.ID).Return(nil, auth.ErrNotFound)

		_, err := ts.svc.AuthenticateToken(ctx, "orphan-value")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.tokens.On("GetByAccount", ctx, account.ID).Return(nil, auth.ErrNotFound)
		ts.tokens.On("CreateIfAbsent", ctx, mock.AnythingOfType("*auth.Token")).Return(true, nil)

		token, err := ts.svc.Login(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, account.ID, token.AccountID)
	})

	t.Run("repeat login returns the same token", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		existing := &auth.Token{AccountID: account.ID, Value: "existing-value"}

		ts.tokens.On("GetByAccount", ctx, account.ID).Return(existing, nil)

		token, err := ts.svc.Login(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, "existing-value", token.Value)
	})

	t.Run("banned account is rejected after credential success", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.AccessLevel = auth.AccessLevelBanned

		token, err := ts.svc.Login(ctx, account)
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrAccountBanned)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_BANNED")
		ts.tokens.AssertNotCalled(t, "GetByAccount")
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the token", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.tokens.On("DeleteByAccount", ctx, account.ID).Return(nil)

		assert.NoError(t, ts.svc.Logout(ctx, account))
	})

	t.Run("no live token surfaces as not logged in", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.tokens.On("DeleteByAccount", ctx, account.ID).Return(auth.ErrNotFound)

		err := ts.svc.Logout(ctx, account)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
	})
}

func TestService_Recover(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown username touches no counters", func(t *testing.T) {
		ts := newTestService(t)

		ts.accounts.On("GetByUsername", mock.Anything, "ghost").Return(nil, auth.ErrNotFound)

		token, err := ts.svc.Recover(ctx, "ghost", "whatever")
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_NOT_FOUND")
		ts.accounts.AssertNotCalled(t, "Update")
	})

	t.Run("locked account is refused before matching", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.RecoveryAttempts = auth.MaxRecoveryAttempts

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)

		token, err := ts.svc.Recover(ctx, "alice", "My Secret Pass")
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrAccountLocked)
		ts.secrets.AssertNotCalled(t, "Verify")
		ts.accounts.AssertNotCalled(t, "Update")
	})

	t.Run("password match issues a token and resets the counter", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.RecoveryAttempts = 2

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
		ts.secrets.On("Verify", mock.Anything, "My Secret Pass", "password-hash").Return(true, nil)
		ts.accounts.On("Update", mock.Anything, account).Return(nil)
		ts.tokens.On("GetByAccount", mock.Anything, account.ID).Return(nil, auth.ErrNotFound)
		ts.tokens.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*auth.Token")).Return(true, nil)

		token, err := ts.svc.Recover(ctx, "alice", "My Secret Pass")
		require.NoError(t, err)
		assert.Equal(t, account.ID, token.AccountID)
		assert.Zero(t, account.RecoveryAttempts)
	})

	t.Run("one-time code match consumes the code", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.AssignVerificationCode("abcabc")

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
		ts.accounts.On("Update", mock.Anything, account).Return(nil)
		ts.tokens.On("GetByAccount", mock.Anything, account.ID).Return(nil, auth.ErrNotFound)
		ts.tokens.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*auth.Token")).Return(true, nil)

		token, err := ts.svc.Recover(ctx, "alice", "ABC ABC")
		require.NoError(t, err)
		assert.NotNil(t, token)
		assert.Equal(t, auth.VerificationConsumed, account.VerificationState)
	})

	t.Run("no match persists the failed attempt", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
		ts.secrets.On("Verify", mock.Anything, "bad input", "password-hash").Return(false, nil)
		ts.secrets.On("Verify", mock.Anything, "badinput", "recovery-hash").Return(false, nil)
		ts.accounts.On("Update", mock.Anything, account).Return(nil)

		token, err := ts.svc.Recover(ctx, "alice", "bad input")
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
		assert.Equal(t, 1, account.RecoveryAttempts)
		ts.tokens.AssertNotCalled(t, "GetByAccount")
	})

	t.Run("replayed consumed code fails but still counts", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)
		account.AssignVerificationCode("abcabc")
		account.ConsumeVerificationCode()

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
		ts.accounts.On("Update", mock.Anything, account).Return(nil)

		token, err := ts.svc.Recover(ctx, "alice", "abcabc")
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrCodeAlreadyConsumed)
		assert.Equal(t, 1, account.RecoveryAttempts, "the increment was persisted")
		ts.secrets.AssertNotCalled(t, "Verify")
	})

	t.Run("version conflict retries against fresh state", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil).Twice()
		ts.secrets.On("Verify", mock.Anything, "My Secret Pass", "password-hash").Return(true, nil).Twice()
		ts.accounts.On("Update", mock.Anything, account).Return(auth.ErrVersionConflict).Once()
		ts.accounts.On("Update", mock.Anything, account).Return(nil).Once()
		ts.tokens.On("GetByAccount", mock.Anything, account.ID).Return(nil, auth.ErrNotFound)
		ts.tokens.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*auth.Token")).Return(true, nil)

		token, err := ts.svc.Recover(ctx, "alice", "My Secret Pass")
		require.NoError(t, err)
		assert.NotNil(t, token)
	})

	t.Run("persistent contention gives up", func(t *testing.T) {
		ts := newTestService(t)
		account := newRecoveryAccount(t)

		ts.accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
		ts.secrets.On("Verify", mock.Anything, "My Secret Pass", "password-hash").Return(true, nil)
		ts.accounts.On("Update", mock.Anything, account).Return(auth.ErrVersionConflict)

		token, err := ts.svc.Recover(ctx, "alice", "My Secret Pass")
		require.Error(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, err, auth.ErrVersionConflict)
		errutil.AssertErrorCode(t, err, "AUTH_RECOVERY_CONTENTION")
	})
}
