package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the Postgres channel the documents trigger publishes on.
// Payloads have the form "collection/id".
const NotifyChannel = "documents_changed"

// Postgres is a Store backed by the documents table. Every instance sharing
// the database listens on NotifyChannel, so subscribers see writes made by
// any instance.
type Postgres struct {
	Pool   *pgxpool.Pool
	log    *slog.Logger
	broker *broker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn and starts the change listener. The documents
// table must already exist (see storage.RunMigrations).
func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Postgres{Pool: pool, log: log}
	s.broker = newBroker(s, log)

	lctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.listen(lctx)
	return s, nil
}

// listen relays NOTIFY payloads to the broker until ctx is cancelled,
// reconnecting after errors.
func (s *Postgres) listen(ctx context.Context) {
	defer s.wg.Done()
	for ctx.Err() == nil {
		if err := s.listenOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("change listener failed, reconnecting", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *Postgres) listenOnce(ctx context.Context) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listener connection: %w", err)
	}
	defer func() {
		// The connection goes back to the pool, so stop listening first.
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		collection, id, ok := strings.Cut(n.Payload, "/")
		if !ok {
			s.log.Debug("ignoring malformed notification", "payload", n.Payload)
			continue
		}
		s.broker.notify(collection, id)
	}
}

// Get returns one document.
func (s *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}
	var (
		data    map[string]any
		updated time.Time
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Document{ID: id, Data: data, UpdatedAt: updated}, nil
}

// Create inserts a new document, failing if the id already exists.
func (s *Postgres) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("creating %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	s.broker.notify(collection, id)
	return nil
}

// Set writes a whole document, or merges into it with Merge().
func (s *Postgres) Set(ctx context.Context, collection, id string, data map[string]any, opts ...SetOption) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		// FOR UPDATE cannot lock a missing row, so concurrent first writes
		// would each merge into nothing. Insert an empty row first; a racing
		// insert waits on it and then locks the committed row.
		if _, err := tx.Exec(ctx,
			`INSERT INTO documents (collection, id) VALUES ($1, $2)
			 ON CONFLICT (collection, id) DO NOTHING`,
			collection, id); err != nil {
			return err
		}
		existing, err := lockData(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		return upsertData(ctx, tx, collection, id, applySet(existing, data, opts))
	})
	if err != nil {
		return fmt.Errorf("setting %s/%s: %w", collection, id, err)
	}
	s.broker.notify(collection, id)
	return nil
}

// Update changes a single field path of an existing document.
func (s *Postgres) Update(ctx context.Context, collection, id, path string, value any) error {
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
	err = pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		existing, err := lockData(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		setPath(existing, parts, v)
		return upsertData(ctx, tx, collection, id, existing)
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
func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(collection, id); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	s.broker.notify(collection, id)
	return nil
}

// Query lists documents of a collection.
func (s *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var (
		rows pgx.Rows
		err  error
	)
	if q.Field == "" {
		rows, err = s.Pool.Query(ctx,
			`SELECT id, data, updated_at FROM documents WHERE collection = $1 ORDER BY id`,
			q.Collection)
	} else {
		rows, err = s.Pool.Query(ctx,
			`SELECT id, data, updated_at FROM documents
			 WHERE collection = $1 AND data->>$2 = $3 ORDER BY id`,
			q.Collection, q.Field, q.Equals)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Data, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		if d.Data == nil {
			d.Data = map[string]any{}
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// SubscribeDocument streams snapshots of one document to fn.
func (s *Postgres) SubscribeDocument(ctx context.Context, collection, id string, fn func(Snapshot)) (Unsubscribe, error) {
	if err := checkKey(collection, id); err != nil {
		return nil, err
	}
	return s.broker.subscribeDocument(ctx, collection, id, fn), nil
}

// SubscribeQuery streams the result set of q to fn after every change.
func (s *Postgres) SubscribeQuery(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return s.broker.subscribeQuery(ctx, q, fn), nil
}

// Close stops the listener and subscriptions, then closes the pool.
func (s *Postgres) Close() error {
	s.cancel()
	s.wg.Wait()
	s.broker.closeAll()
	s.Pool.Close()
	return nil
}

func lockData(ctx context.Context, tx pgx.Tx, collection, id string) (map[string]any, error) {
	var data map[string]any
	err := tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func upsertData(ctx context.Context, tx pgx.Tx, collection, id string, data map[string]any) error {
	raw, err := marshalData(data)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, raw)
	return err
}
