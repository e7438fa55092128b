package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/store"
)

type fakeAdmin struct {
	phase    store.Phase
	rebuilds int
	err      error
}

func (a *fakeAdmin) Phase() store.Phase { return a.phase }

func (a *fakeAdmin) Rebuild(context.Context) error {
	a.rebuilds++
	return a.err
}

type fakeStats struct{}

func (fakeStats) Stats() store.Stats {
	return store.Stats{Users: 2, Titles: map[string]int{"papers": 3}}
}

func serve(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(RouterConfig{Admin: &fakeAdmin{phase: store.PhaseRunning}})

	rec := serve(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","phase":"running"}`, rec.Body.String())
}

func TestRouter_MCPAndMetricsAreMounted(t *testing.T) {
	var hits []string
	record := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, name+" "+r.URL.Path)
		})
	}
	router := NewRouter(RouterConfig{MCP: record("mcp"), Metrics: record("metrics")})

	serve(t, router, http.MethodPost, "/mcp", "")
	serve(t, router, http.MethodGet, "/mcp/session", "")
	serve(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, []string{"mcp /mcp", "mcp /mcp/session", "metrics /metrics"}, hits)
}

func TestRouter_AdminRequiresAuth(t *testing.T) {
	admin := &fakeAdmin{phase: store.PhaseRunning}
	resolver := &testResolver{tokens: map[string]user.PrimaryKey{"ops": user.NewPrimaryKey()}}
	router := NewRouter(RouterConfig{Admin: admin, Stats: fakeStats{}, Auth: AuthMiddleware(resolver, nil)})

	require.Equal(t, http.StatusUnauthorized, serve(t, router, http.MethodPost, "/admin/rebuild", "").Code)
	require.Zero(t, admin.rebuilds)

	rec := serve(t, router, http.MethodPost, "/admin/rebuild", "ops")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, admin.rebuilds)

	rec = serve(t, router, http.MethodGet, "/admin/stats", "ops")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"papers":3`)
}

func TestRouter_RebuildFailure(t *testing.T) {
	admin := &fakeAdmin{phase: store.PhaseTerminated, err: errors.New("boom")}
	router := NewRouter(RouterConfig{Admin: admin})

	rec := serve(t, router, http.MethodPost, "/admin/rebuild", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "boom")
}
