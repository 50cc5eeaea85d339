package docstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// reader is the read side a broker needs to build snapshots.
type reader interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
}

// broker fans document changes out to in-process subscribers.
//
// Each subscription owns a goroutine and a one-slot dirty channel. A change
// marks matching subscriptions dirty; the goroutine then re-reads and calls
// the callback. Bursts of changes coalesce into one delivery.
type broker struct {
	src reader
	log *slog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	collection string
	id         string // empty for query subscriptions
	dirty      chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
	once       sync.Once
}

func newBroker(src reader, log *slog.Logger) *broker {
	return &broker{
		src:  src,
		log:  log,
		subs: make(map[*subscription]struct{}),
	}
}

// notify marks every subscription interested in (collection, id) dirty.
func (b *broker) notify(collection, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.collection != collection {
			continue
		}
		if s.id != "" && s.id != id {
			continue
		}
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

func (b *broker) subscribeDocument(ctx context.Context, collection, id string, fn func(Snapshot)) Unsubscribe {
	return b.start(ctx, collection, id, func(ctx context.Context) {
		doc, err := b.src.Get(ctx, collection, id)
		switch {
		case errors.Is(err, ErrNotFound):
			fn(Snapshot{ID: id})
		case err != nil:
			if ctx.Err() == nil {
				b.log.Warn("document subscription read failed", "collection", collection, "id", id, "error", err)
			}
		default:
			fn(Snapshot{ID: id, Exists: true, Data: doc.Data, UpdatedAt: doc.UpdatedAt})
		}
	})
}

func (b *broker) subscribeQuery(ctx context.Context, q Query, fn func([]Document)) Unsubscribe {
	return b.start(ctx, q.Collection, "", func(ctx context.Context) {
		docs, err := b.src.Query(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				b.log.Warn("query subscription read failed", "collection", q.Collection, "error", err)
			}
			return
		}
		fn(docs)
	})
}

func (b *broker) start(ctx context.Context, collection, id string, deliver func(context.Context)) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		collection: collection,
		id:         id,
		dirty:      make(chan struct{}, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	// initial snapshot
	s.dirty <- struct{}{}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.dirty:
			}
			if ctx.Err() != nil {
				return
			}
			deliver(ctx)
		}
	}()

	return func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			s.cancel()
		})
		<-s.done
	}
}

// closeAll stops every subscription.
func (b *broker) closeAll() {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.once.Do(s.cancel)
		<-s.done
	}
}
