// Package dashboard keeps a coach's live view of every athlete currently
// training in a tenant.
package dashboard

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// Source delivers live-session changes. storage.DB implements it.
type Source interface {
	SubscribeTenantSessions(ctx context.Context, tenantID string, fn func(ids []string)) (docstore.Unsubscribe, error)
	SubscribeLiveSession(ctx context.Context, athleteID string, fn func(s models.LiveSession, exists bool)) (docstore.Unsubscribe, error)
}

// Aggregator follows the set of live sessions of one tenant and keeps one
// per-athlete subscription for each.
//
// Sessions are kept in the order they were first seen. onChange receives the
// full list after every change; it runs with the aggregator locked and must
// not call back into it.
type Aggregator struct {
	src      Source
	tenantID string
	log      *slog.Logger
	onChange func([]models.LiveSession)

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.Mutex
	closed   bool
	queryOff docstore.Unsubscribe
	// nil value: subscription still being registered
	tracked  map[string]docstore.Unsubscribe
	sessions []models.LiveSession
}

// New creates an aggregator. Nothing is subscribed until Start.
func New(src Source, tenantID string, log *slog.Logger, onChange func([]models.LiveSession)) *Aggregator {
	if onChange == nil {
		onChange = func([]models.LiveSession) {}
	}
	return &Aggregator{
		src:      src,
		tenantID: tenantID,
		log:      log.With("tenant", tenantID),
		onChange: onChange,
		tracked:  make(map[string]docstore.Unsubscribe),
	}
}

// Start subscribes to the tenant's session set. On error nothing stays registered.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	unsub, err := a.src.SubscribeTenantSessions(a.ctx, a.tenantID, a.reconcile)
	if err != nil {
		a.Close()
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		unsub()
		return nil
	}
	a.queryOff = unsub
	a.mu.Unlock()
	return nil
}

// Sessions returns a copy of the current list.
func (a *Aggregator) Sessions() []models.LiveSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.sessions)
}

// reconcile diffs the tenant's ids against the tracked set.
func (a *Aggregator) reconcile(ids []string) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	var added []string
	for _, id := range ids {
		if _, ok := a.tracked[id]; !ok {
			a.tracked[id] = nil
			added = append(added, id)
		}
	}
	var removed []docstore.Unsubscribe
	changed := false
	for id, unsub := range a.tracked {
		if _, ok := want[id]; ok {
			continue
		}
		delete(a.tracked, id)
		if unsub != nil {
			removed = append(removed, unsub)
		}
		if a.removeLocked(id) {
			changed = true
		}
	}
	if changed {
		a.onChange(slices.Clone(a.sessions))
	}
	ctx := a.ctx
	a.mu.Unlock()

	for _, unsub := range removed {
		unsub()
	}
	for _, id := range added {
		a.follow(ctx, id)
	}
}

func (a *Aggregator) follow(ctx context.Context, id string) {
	unsub, err := a.src.SubscribeLiveSession(ctx, id, func(s models.LiveSession, exists bool) {
		a.apply(id, s, exists)
	})
	if err != nil {
		a.log.Warn("subscribing to live session failed", "athlete", id, "error", err)
		a.mu.Lock()
		if u, ok := a.tracked[id]; ok && u == nil {
			delete(a.tracked, id)
		}
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	u, ok := a.tracked[id]
	if a.closed || !ok || u != nil {
		// Dropped from the set (or closed) while subscribing.
		a.mu.Unlock()
		unsub()
		return
	}
	a.tracked[id] = unsub
	a.mu.Unlock()
}

// apply folds one snapshot into the list: deleted entries are removed,
// known ones replaced in place, new ones appended.
func (a *Aggregator) apply(id string, s models.LiveSession, exists bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tracked[id]; !ok || a.closed {
		return
	}
	if !exists {
		if a.removeLocked(id) {
			a.onChange(slices.Clone(a.sessions))
		}
		return
	}
	if i := a.indexLocked(id); i >= 0 {
		a.sessions[i] = s
	} else {
		a.sessions = append(a.sessions, s)
	}
	a.onChange(slices.Clone(a.sessions))
}

func (a *Aggregator) indexLocked(id string) int {
	return slices.IndexFunc(a.sessions, func(s models.LiveSession) bool { return s.AthleteID == id })
}

func (a *Aggregator) removeLocked(id string) bool {
	i := a.indexLocked(id)
	if i < 0 {
		return false
	}
	a.sessions = slices.Delete(a.sessions, i, i+1)
	return true
}

// Close unregisters every subscription exactly once. Safe to call repeatedly.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		offs := make([]docstore.Unsubscribe, 0, len(a.tracked)+1)
		if a.queryOff != nil {
			offs = append(offs, a.queryOff)
		}
		for _, unsub := range a.tracked {
			if unsub != nil {
				offs = append(offs, unsub)
			}
		}
		a.tracked = make(map[string]docstore.Unsubscribe)
		a.sessions = nil
		cancel := a.cancel
		a.mu.Unlock()

		for _, off := range offs {
			off()
		}
		if cancel != nil {
			cancel()
		}
	})
}
