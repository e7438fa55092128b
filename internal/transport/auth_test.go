package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/user"
)

type testResolver struct {
	tokens map[string]user.PrimaryKey
	err    error
}

func (r *testResolver) Resolve(_ context.Context, token string) (user.PrimaryKey, error) {
	if r.err != nil {
		return user.PrimaryKey{}, r.err
	}
	key, ok := r.tokens[token]
	if !ok {
		return user.PrimaryKey{}, ErrUnauthorized
	}
	return key, nil
}

func TestAuthMiddleware(t *testing.T) {
	alice := user.NewPrimaryKey()
	resolver := &testResolver{tokens: map[string]user.PrimaryKey{"token": alice}}

	handler := AuthMiddleware(resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := CallerFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, alice, key)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, alice.Reference(), rec.Header().Get(CallerHeader))
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		resolver *testResolver
		header   string
	}{
		{"resolver error", &testResolver{err: errors.New("invalid")}, "Bearer token"},
		{"unknown token", &testResolver{}, "Bearer other"},
		{"missing header", &testResolver{}, ""},
		{"basic scheme", &testResolver{tokens: map[string]user.PrimaryKey{"token": user.NewPrimaryKey()}}, "Basic token"},
		{"empty bearer", &testResolver{}, "Bearer   "},
		{"zero key", &testResolver{tokens: map[string]user.PrimaryKey{"token": {}}}, "Bearer token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(tt.resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, `Bearer realm="arche"`, rec.Header().Get("WWW-Authenticate"))
			require.Empty(t, rec.Header().Get(CallerHeader))
		})
	}
}
