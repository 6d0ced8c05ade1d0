// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grundev/swiftarr/internal/auth"
	"github.com/grundev/swiftarr/internal/httpapi"
	"github.com/grundev/swiftarr/internal/observability"
)

// stubAuthService implements httpapi.AuthService with function fields so each
// test controls exactly the calls it expects.
type stubAuthService struct {
	authenticateBasic func(ctx context.Context, username, password string) (*auth.Account, error)
	authenticateToken func(ctx context.Context, value string) (*auth.Account, error)
	login             func(ctx context.Context, account *auth.Account) (*auth.Token, error)
	logout            func(ctx context.Context, account *auth.Account) error
	recover           func(ctx context.Context, username, rawInput string) (*auth.Token, error)
}

func (s *stubAuthService) AuthenticateBasic(ctx context.Context, username, password string) (*auth.Account, error) {
	return s.authenticateBasic(ctx, username, password)
}

func (s *stubAuthService) AuthenticateToken(ctx context.Context, value string) (*auth.Account, error) {
	return s.authenticateToken(ctx, value)
}

func (s *stubAuthService) Login(ctx context.Context, account *auth.Account) (*auth.Token, error) {
	return s.login(ctx, account)
}

func (s *stubAuthService) Logout(ctx context.Context, account *auth.Account) error {
	return s.logout(ctx, account)
}

func (s *stubAuthService) Recover(ctx context.Context, username, rawInput string) (*auth.Token, error) {
	return s.recover(ctx, username, rawInput)
}

type handlerFixture struct {
	mux     *http.ServeMux
	metrics *observability.Metrics
}

func newHandlerFixture(t *testing.T, svc *stubAuthService) *handlerFixture {
	t.Helper()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler, err := httpapi.NewAuthHandler(svc, metrics)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.Register(mux)
	return &handlerFixture{mux: mux, metrics: metrics}
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// decodeError unpacks the JSON error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Error)
	return body.Reason
}

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Token
}

func TestNewAuthHandler_NilDependencies(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	_, err := httpapi.NewAuthHandler(nil, metrics)
	assert.Error(t, err)

	_, err = httpapi.NewAuthHandler(&stubAuthService{}, nil)
	assert.Error(t, err)
}

func TestHandleLogin(t *testing.T) {
	account := &auth.Account{Username: "alice"}
	token := &auth.Token{Value: "token-value"}

	t.Run("valid basic credentials return the token", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateBasic: func(_ context.Context, username, password string) (*auth.Account, error) {
				assert.Equal(t, "alice", username)
				assert.Equal(t, "password123", password)
				return account, nil
			},
			login: func(_ context.Context, got *auth.Account) (*auth.Token, error) {
				assert.Same(t, account, got)
				return token, nil
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.SetBasicAuth("alice", "password123")
		rec := f.do(req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "token-value", decodeToken(t, rec))
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues("success")))
	})

	t.Run("missing authorization header is 401", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "user not authenticated", decodeError(t, rec))
	})

	t.Run("invalid credentials are 401", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateBasic: func(context.Context, string, string) (*auth.Account, error) {
				return nil, auth.ErrNotAuthenticated
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.SetBasicAuth("alice", "wrong")
		rec := f.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid username or password", decodeError(t, rec))
	})

	t.Run("banned account is 403 nope", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateBasic: func(context.Context, string, string) (*auth.Account, error) {
				return account, nil
			},
			login: func(context.Context, *auth.Account) (*auth.Token, error) {
				return nil, auth.ErrAccountBanned
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.SetBasicAuth("alice", "password123")
		rec := f.do(req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "nope", decodeError(t, rec))
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues("banned")))
	})

	t.Run("storage fault is a generic 500", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateBasic: func(context.Context, string, string) (*auth.Account, error) {
				return nil, assert.AnError
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.SetBasicAuth("alice", "password123")
		rec := f.do(req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec))
	})

	t.Run("wrong method is rejected", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleLogout(t *testing.T) {
	account := &auth.Account{Username: "alice"}

	t.Run("valid bearer token logs out with 204", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateToken: func(_ context.Context, value string) (*auth.Account, error) {
				assert.Equal(t, "token-value", value)
				return account, nil
			},
			logout: func(_ context.Context, got *auth.Account) error {
				assert.Same(t, account, got)
				return nil
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer token-value")
		rec := f.do(req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("missing bearer token is 401", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic scheme on logout is 401", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.SetBasicAuth("alice", "password123")
		rec := f.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stale token is 401", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateToken: func(context.Context, string) (*auth.Account, error) {
				return nil, auth.ErrNotAuthenticated
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer stale-value")
		rec := f.do(req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("vanished token is a 409 conflict", func(t *testing.T) {
		svc := &stubAuthService{
			authenticateToken: func(context.Context, string) (*auth.Account, error) {
				return account, nil
			},
			logout: func(context.Context, *auth.Account) error {
				return auth.ErrNotLoggedIn
			},
		}
		f := newHandlerFixture(t, svc)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer token-value")
		rec := f.do(req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "user is not logged in", decodeError(t, rec))
	})
}

func TestHandleRecovery(t *testing.T) {
	token := &auth.Token{Value: "token-value"}

	recoveryBody := func(username, key string) *strings.Reader {
		body, _ := json.Marshal(map[string]string{"username": username, "recoveryKey": key})
		return strings.NewReader(string(body))
	}

	t.Run("matching credential returns a token", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(_ context.Context, username, rawInput string) (*auth.Token, error) {
				assert.Equal(t, "alice", username)
				assert.Equal(t, "ABC 123", rawInput)
				return token, nil
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "ABC 123")))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "token-value", decodeToken(t, rec))
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecoveriesTotal.WithLabelValues("success")))
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", strings.NewReader("{not json")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		f := newHandlerFixture(t, &stubAuthService{})

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown username is 400 with the name echoed", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(context.Context, string, string) (*auth.Token, error) {
				return nil, auth.ErrNotFound
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("ghost", "whatever")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec), `username "ghost" not found`)
	})

	t.Run("locked account is 403", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(context.Context, string, string) (*auth.Token, error) {
				return nil, auth.ErrAccountLocked
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "whatever")))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, decodeError(t, rec), "support team")
	})

	t.Run("consumed code is 400 pointing at the recovery key", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(context.Context, string, string) (*auth.Token, error) {
				return nil, auth.ErrCodeAlreadyConsumed
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "abc123")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec), "recovery key")
	})

	t.Run("no match is 400", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(context.Context, string, string) (*auth.Token, error) {
				return nil, auth.ErrInvalidCredential
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "wrong")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no match for supplied recovery key", decodeError(t, rec))
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RecoveriesTotal.WithLabelValues("no_match")))
	})

	t.Run("storage fault is a generic 500", func(t *testing.T) {
		svc := &stubAuthService{
			recover: func(context.Context, string, string) (*auth.Token, error) {
				return nil, assert.AnError
			},
		}
		f := newHandlerFixture(t, svc)

		rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/recovery", recoveryBody("alice", "whatever")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec))
	})
}
