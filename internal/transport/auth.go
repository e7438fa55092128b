package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/perforate-org/arche/internal/domain/user"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// CallerHeader echoes the reference of the owner behind the token, so
// operator actions show up in access logs under a user.
const CallerHeader = "X-Arche-Caller"

type callerKey struct{}

// CallerResolver resolves the owner key behind a bearer token.
type CallerResolver interface {
	Resolve(ctx context.Context, token string) (user.PrimaryKey, error)
}

// CallerFromContext returns the owner key the request was authenticated as.
func CallerFromContext(ctx context.Context) (user.PrimaryKey, bool) {
	key, ok := ctx.Value(callerKey{}).(user.PrimaryKey)
	return key, ok && !key.IsZero()
}

// AuthMiddleware requires an API key owned by a user. Rejections are logged
// with the reason; accepted requests carry the owner key in their context.
func AuthMiddleware(resolver CallerResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				reject(w, "missing bearer token")
				return
			}

			owner, err := resolver.Resolve(r.Context(), token)
			switch {
			case err != nil:
				logger.Warn("api key rejected", "path", r.URL.Path, "error", err)
				reject(w, "invalid bearer token")
				return
			case owner.IsZero():
				logger.Warn("api key has no owner", "path", r.URL.Path)
				reject(w, "invalid bearer token")
				return
			}

			logger.Debug("admin caller", "path", r.URL.Path, "caller", owner.Reference())
			w.Header().Set(CallerHeader, owner.Reference())
			ctx := context.WithValue(r.Context(), callerKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="arche"`)
	http.Error(w, msg, http.StatusUnauthorized)
}
