package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/perforate-org/arche/internal/domain/user"
)

type contextKey int

const callerKey contextKey = iota

// ErrNoCaller is returned when a tool runs without an authenticated caller.
var ErrNoCaller = errors.New("no caller identity")

// WithCaller returns a context carrying key as the calling principal.
func WithCaller(ctx context.Context, key user.PrimaryKey) context.Context {
	return context.WithValue(ctx, callerKey, key)
}

// CallerFromContext extracts the calling principal.
func CallerFromContext(ctx context.Context) (user.PrimaryKey, bool) {
	key, ok := ctx.Value(callerKey).(user.PrimaryKey)
	return key, ok && !key.IsZero()
}

// CallerResolver resolves the owner key behind a bearer token.
type CallerResolver interface {
	Resolve(ctx context.Context, token string) (user.PrimaryKey, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver CallerResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Protocol handshake carries no caller.
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			key, err := resolver.Resolve(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if key.IsZero() {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			return next(WithCaller(ctx, key), method, req)
		}
	}
}

// fixedCallerMiddleware attributes every request to one caller. Used for
// stdio and for HTTP with auth disabled.
func fixedCallerMiddleware(key user.PrimaryKey) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(WithCaller(ctx, key), method, req)
		}
	}
}
