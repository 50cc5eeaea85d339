package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a single-node Store backed by one SQLite file. Changes are only
// visible to subscribers in the same process.
type SQLite struct {
	db     *sql.DB
	broker *broker
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, log *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection serialises writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	s := &SQLite{db: db}
	s.broker = newBroker(s, log)
	return s, nil
}

// Get returns one document.
func (s *SQLite) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}
	var raw, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	return buildDocument(id, raw, updated)
}

// Create inserts a new document, failing if the id already exists.
func (s *SQLite) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		collection, id, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("creating %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	s.broker.notify(collection, id)
	return nil
}

// Set writes a whole document, or merges into it with Merge().
func (s *SQLite) Set(ctx context.Context, collection, id string, data map[string]any, opts ...SetOption) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.lockedData(ctx, tx, collection, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.upsert(ctx, tx, collection, id, applySet(existing, data, opts))
	})
	if err != nil {
		return fmt.Errorf("setting %s/%s: %w", collection, id, err)
	}
	s.broker.notify(collection, id)
	return nil
}

// Update changes a single field path of an existing document.
func (s *SQLite) Update(ctx context.Context, collection, id, path string, value any) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.lockedData(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		setPath(existing, parts, v)
		return s.upsert(ctx, tx, collection, id, existing)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating %s/%s %s: %w", collection, id, path, err)
	}
	s.broker.notify(collection, id)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	s.broker.notify(collection, id)
	return nil
}

// Query lists documents of a collection.
func (s *SQLite) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var (
		rows *sql.Rows
		err  error
	)
	if q.Field == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data, updated_at FROM documents WHERE collection = ? ORDER BY id`,
			q.Collection)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data, updated_at FROM documents
			 WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY id`,
			q.Collection, "$."+q.Field, q.Equals)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var id, raw, updated string
		if err := rows.Scan(&id, &raw, &updated); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		doc, err := buildDocument(id, raw, updated)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

// SubscribeDocument streams snapshots of one document to fn.
func (s *SQLite) SubscribeDocument(ctx context.Context, collection, id string, fn func(Snapshot)) (Unsubscribe, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}
	return s.broker.subscribeDocument(ctx, collection, id, fn), nil
}

// SubscribeQuery streams the result set of q to fn after every change.
func (s *SQLite) SubscribeQuery(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return s.broker.subscribeQuery(ctx, q, fn), nil
}

// Close stops subscriptions and closes the database.
func (s *SQLite) Close() error {
	s.broker.closeAll()
	return s.db.Close()
}

func (s *SQLite) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLite) lockedData(ctx context.Context, tx *sql.Tx, collection, id string) (map[string]any, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unmarshalData([]byte(raw))
}

func (s *SQLite) upsert(ctx context.Context, tx *sql.Tx, collection, id string, data map[string]any) error {
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	now := formatTime(time.Now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), now, now)
	return err
}

func buildDocument(id, raw, updated string) (*Document, error) {
	data, err := unmarshalData([]byte(raw))
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	return &Document{ID: id, Data: data, UpdatedAt: t}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
