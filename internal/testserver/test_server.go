// Package testserver runs the HTTP stack over in-memory SQLite for tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/perforate-org/arche/internal/app"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/mcp"
	"github.com/perforate-org/arche/internal/sqlite"
	"github.com/perforate-org/arche/internal/transport"
)

// Now is the fixed clock every TestServer runs on.
var Now = time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC)

type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	App    *app.App
	Keys   *sqlite.APIKeyRepository
}

func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	a, err := app.New(sqlite.NewKVStore(db), app.Options{
		Clock: entityid.ClockFunc(func() time.Time { return Now }),
	})
	require.NoError(t, err)
	_, err = a.Manager.Resume(context.Background())
	require.NoError(t, err)

	keys := sqlite.NewAPIKeyRepository(db)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Users:    a.Users,
			Papers:   a.Papers,
			Articles: a.Articles,
			Stats:    a.State,
		},
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: "http",
	})

	router := transport.NewRouter(transport.RouterConfig{
		MCP:     mcp.NewHTTPHandler(mcpServer),
		Metrics: promhttp.Handler(),
		Admin:   a.Manager,
		Stats:   a.State,
		Auth:    transport.AuthMiddleware(keys, nil),
	})
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server: server,
		DB:     db,
		App:    a,
		Keys:   keys,
	}

	t.Cleanup(func() {
		server.Close()
		a.Manager.Terminate(context.Background())
		_ = db.Close()
	})

	return ts
}

// AddUser registers a profile and returns a bearer token for it.
func (ts *TestServer) AddUser(t *testing.T, id, name string) (user.PrimaryKey, string) {
	t.Helper()
	ctx := context.Background()
	key := user.NewPrimaryKey()
	_, err := ts.App.Users.Register(ctx, key, user.RegisterRequest{ID: &id, Name: name})
	require.NoError(t, err)

	token := "tok-" + id
	require.NoError(t, ts.Keys.Create(ctx, token, key, "test key for "+id))
	return key, token
}

// Connect opens an MCP client session authenticated with token.
func (ts *TestServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()
	tr := &sdkmcp.StreamableClientTransport{
		Endpoint: ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: bearer{token: token, next: http.DefaultTransport},
		},
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), tr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

type bearer struct {
	token string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.next.RoundTrip(req)
}
