package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/perforate-org/arche/internal/store"
)

// Admin is the operator surface of the running store.
type Admin interface {
	Phase() store.Phase
	Rebuild(ctx context.Context) error
}

// StatsSource reports index sizes.
type StatsSource interface {
	Stats() store.Stats
}

// RouterConfig wires the HTTP endpoints.
type RouterConfig struct {
	// MCP serves the streamable MCP endpoint.
	MCP     http.Handler
	Metrics http.Handler
	Admin   Admin
	Stats   StatsSource
	// Auth guards the admin routes. Nil leaves them open.
	Auth func(http.Handler) http.Handler
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]string{"status": "ok"}
		if cfg.Admin != nil {
			resp["phase"] = cfg.Admin.Phase().String()
		}
		writeJSON(w, http.StatusOK, resp)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Route("/admin", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			if cfg.Stats == nil {
				http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, cfg.Stats.Stats())
		})
		r.Post("/rebuild", func(w http.ResponseWriter, req *http.Request) {
			if cfg.Admin == nil {
				http.Error(w, "admin unavailable", http.StatusServiceUnavailable)
				return
			}
			if err := cfg.Admin.Rebuild(req.Context()); err != nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt", "phase": cfg.Admin.Phase().String()})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
