// Package app wires the store, the snapshot manager and the domain services
// over one key-value backend.
package app

import (
	"fmt"
	"log/slog"

	"github.com/perforate-org/arche/internal/domain/article"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/store"
)

// Options configures New.
type Options struct {
	Clock  entityid.Clock
	Logger *slog.Logger
	// Blobs holds the index snapshot. Nil keeps it inside the backend.
	Blobs kv.BlobStore
}

// App holds the process-wide components.
type App struct {
	State    *store.State
	Manager  *store.Manager
	Users    *user.Service
	Papers   *post.Service[*paper.Paper]
	Articles *post.Service[*article.Article]
}

// New registers both entity kinds over db. The indices are empty until
// Manager.Resume runs.
func New(db kv.Store, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	state := store.New(db, store.Options{Clock: opts.Clock, Logger: logger.With("component", "store")})

	papers, err := store.NewEntities(state, store.Kind[*paper.Paper]{
		Name:   paper.Kind,
		Encode: paper.Encode,
		Decode: paper.Decode,
	})
	if err != nil {
		return nil, fmt.Errorf("register papers: %w", err)
	}
	articles, err := store.NewEntities(state, store.Kind[*article.Article]{
		Name:   article.Kind,
		Encode: article.Encode,
		Decode: article.Decode,
	})
	if err != nil {
		return nil, fmt.Errorf("register articles: %w", err)
	}

	users := user.NewService(state.Users(), logger.With("component", "users"))
	return &App{
		State:    state,
		Manager:  store.NewManager(state, opts.Blobs, logger.With("component", "snapshot")),
		Users:    users,
		Papers:   post.NewService[*paper.Paper](paper.Kind, papers, users, opts.Clock, logger),
		Articles: post.NewService[*article.Article](article.Kind, articles, users, opts.Clock, logger),
	}, nil
}
