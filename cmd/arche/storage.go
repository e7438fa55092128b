package main

import (
	"fmt"
	"log/slog"

	"github.com/perforate-org/arche/internal/app"
	"github.com/perforate-org/arche/internal/badger"
	"github.com/perforate-org/arche/internal/config"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/kv"
	"github.com/perforate-org/arche/internal/sqlite"
)

// backend is an opened application together with what must be closed after it.
type backend struct {
	app *app.App
	db  kv.Store
	// sql is set for the sqlite backend so the key table can share it.
	sql *sqlite.DB
}

func (b *backend) Close() error {
	return b.db.Close()
}

// openStore opens the configured key-value backend.
func openStore(cfg config.Config, logger *slog.Logger) (kv.Store, *sqlite.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := openSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewKVStore(db), db, nil
	case config.BackendBadger:
		bcfg := badger.DefaultConfig(cfg.Storage.BadgerPath)
		bcfg.SyncWrites = cfg.Storage.SyncWrites
		bcfg.GCInterval = cfg.Storage.BadgerGCInterval
		bcfg.Logger = logger.With("component", "badger")
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger: %w", err)
		}
		return store, nil, nil
	case config.BackendMemory:
		return kv.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openSQLite opens the database at path and applies migrations.
func openSQLite(path string) (*sqlite.DB, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// openBackend opens storage and wires the application over it. The indices
// are not loaded yet.
func openBackend(cfg config.Config, logger *slog.Logger) (*backend, error) {
	db, sqlDB, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var blobs kv.BlobStore
	if cfg.Snapshot.Path != "" {
		fileBlobs, err := kv.NewFileBlobs(cfg.Snapshot.Path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open snapshot directory: %w", err)
		}
		blobs = fileBlobs
	}

	a, err := app.New(db, app.Options{
		Clock:  entityid.SystemClock,
		Logger: logger,
		Blobs:  blobs,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{app: a, db: db, sql: sqlDB}, nil
}

// openKeys opens the API key table. It lives in the SQLite file whatever the
// entity backend is; with the sqlite backend the connection is shared and
// the returned closer does nothing.
func openKeys(cfg config.Config, b *backend) (*sqlite.APIKeyRepository, func(), error) {
	if b != nil && b.sql != nil {
		return sqlite.NewAPIKeyRepository(b.sql), func() {}, nil
	}
	path := cfg.Storage.SQLitePath
	if path == "" {
		path = config.Default().Storage.SQLitePath
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewAPIKeyRepository(db), func() { _ = db.Close() }, nil
}
