// Package docstore is a small document database with change subscriptions.
//
// Documents are JSON objects addressed by (collection, id). Writes are either
// whole-document sets, deep merges, or single field-path updates; readers can
// subscribe to one document or to a filtered collection and receive a fresh
// snapshot after every change. Two backends exist: Postgres (multi-instance,
// change fan-out through LISTEN/NOTIFY) and SQLite (single node).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

var fieldRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Document is a stored JSON object.
type Document struct {
	ID        string
	Data      map[string]any
	UpdatedAt time.Time
}

// Snapshot is what a document subscriber sees. Exists is false once the
// document has been deleted (or before it is created).
type Snapshot struct {
	ID        string
	Exists    bool
	Data      map[string]any
	UpdatedAt time.Time
}

// Query selects documents of one collection, optionally filtered by a
// top-level string field. Results are ordered by id.
type Query struct {
	Collection string
	Field      string
	Equals     string
}

func (q Query) validate() error {
	if q.Collection == "" {
		return errors.New("query collection is required")
	}
	if q.Field != "" && !fieldRe.MatchString(q.Field) {
		return fmt.Errorf("invalid query field %q", q.Field)
	}
	return nil
}

// Unsubscribe stops a subscription. It is safe to call more than once and
// returns after the last callback has completed. It must not be called from
// inside the subscription's own callback.
type Unsubscribe func()

// SetOption changes how Set writes.
type SetOption func(*setOptions)

type setOptions struct {
	merge bool
}

// Merge makes Set deep-merge into the existing document instead of replacing it.
// Nested objects are merged key by key; arrays and scalars are replaced.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection, id string, data map[string]any) error
	Set(ctx context.Context, collection, id string, data map[string]any, opts ...SetOption) error
	// Update sets the value at a dot-separated field path ("progress.0-1-0")
	// of an existing document, leaving every other field untouched.
	Update(ctx context.Context, collection, id, path string, value any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	SubscribeDocument(ctx context.Context, collection, id string, fn func(Snapshot)) (Unsubscribe, error)
	SubscribeQuery(ctx context.Context, q Query, fn func([]Document)) (Unsubscribe, error)
	Close() error
}

func checkKey(collection, id string) error {
	if collection == "" || strings.Contains(collection, "/") {
		return fmt.Errorf("invalid collection %q", collection)
	}
	if id == "" {
		return errors.New("document id is required")
	}
	return nil
}

// applySet computes the stored document for a Set call.
func applySet(existing, data map[string]any, opts []SetOption) map[string]any {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.merge || existing == nil {
		return data
	}
	return deepMerge(existing, data)
}

func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid field path %q", path)
		}
	}
	return parts, nil
}

// setPath writes value at path inside m, creating intermediate objects.
func setPath(m map[string]any, parts []string, value any) {
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
