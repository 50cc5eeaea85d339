package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/meltforce/gymdesk/internal/config"
	"github.com/meltforce/gymdesk/internal/docstore"
)

// Collection names.
const (
	Routines      = "routines"
	LiveSessions  = "live_sessions"
	Tenants       = "tenants"
	WebhookEvents = "webhook_events"
)

// ErrNotFound is returned when a routine, tenant or session does not exist.
var ErrNotFound = docstore.ErrNotFound

// DB wraps a document store and provides repository methods.
type DB struct {
	Docs docstore.Store
}

// New wraps an already opened store.
func New(docs docstore.Store) *DB {
	return &DB{Docs: docs}
}

// Open connects to the backend selected by cfg.Driver. Postgres schemas must
// be migrated first with RunMigrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	switch cfg.Driver {
	case "", "postgres":
		docs, err := docstore.OpenPostgres(ctx, cfg.DSN(), log)
		if err != nil {
			return nil, err
		}
		return New(docs), nil
	case "sqlite":
		docs, err := docstore.OpenSQLite(cfg.Path, log)
		if err != nil {
			return nil, err
		}
		return New(docs), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Close closes the underlying store.
func (db *DB) Close() {
	db.Docs.Close()
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
