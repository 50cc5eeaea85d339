package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// UpsertLiveSession merge-writes an athlete's live snapshot. Only the fields
// set in patch change; the document is created if absent.
func (db *DB) UpsertLiveSession(ctx context.Context, athleteID string, patch models.LivePatch) error {
	data, err := docstore.Encode(patch)
	if err != nil {
		return err
	}
	data["athlete_id"] = athleteID
	if err := db.Docs.Set(ctx, LiveSessions, athleteID, data, docstore.Merge()); err != nil {
		return fmt.Errorf("upserting live session: %w", err)
	}
	return nil
}

// DeleteLiveSession removes an athlete's live snapshot. Missing snapshots are
// not an error.
func (db *DB) DeleteLiveSession(ctx context.Context, athleteID string) error {
	if err := db.Docs.Delete(ctx, LiveSessions, athleteID); err != nil {
		return fmt.Errorf("deleting live session: %w", err)
	}
	return nil
}

// GetLiveSession loads one athlete's snapshot.
func (db *DB) GetLiveSession(ctx context.Context, athleteID string) (*models.LiveSession, error) {
	doc, err := db.Docs.Get(ctx, LiveSessions, athleteID)
	if err != nil {
		return nil, err
	}
	s, err := decodeLive(doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListLiveSessions returns the snapshots of a tenant ordered by athlete id.
func (db *DB) ListLiveSessions(ctx context.Context, tenantID string) ([]models.LiveSession, error) {
	docs, err := db.Docs.Query(ctx, docstore.Query{Collection: LiveSessions, Field: "tenant_id", Equals: tenantID})
	if err != nil {
		return nil, fmt.Errorf("listing live sessions: %w", err)
	}
	return decodeLiveDocs(docs)
}

// ListStaleLiveSessions returns snapshots of every tenant whose last update
// is before cutoff.
func (db *DB) ListStaleLiveSessions(ctx context.Context, cutoff time.Time) ([]models.LiveSession, error) {
	docs, err := db.Docs.Query(ctx, docstore.Query{Collection: LiveSessions})
	if err != nil {
		return nil, fmt.Errorf("listing live sessions: %w", err)
	}
	var stale []models.LiveSession
	for _, d := range docs {
		s, err := decodeLive(d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		last := s.UpdatedAt
		if last.IsZero() {
			last = d.UpdatedAt
		}
		if last.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	return stale, nil
}

// SubscribeTenantSessions calls fn with the athlete ids of the tenant's live
// snapshots, initially and after every change.
func (db *DB) SubscribeTenantSessions(ctx context.Context, tenantID string, fn func(ids []string)) (docstore.Unsubscribe, error) {
	q := docstore.Query{Collection: LiveSessions, Field: "tenant_id", Equals: tenantID}
	return db.Docs.SubscribeQuery(ctx, q, func(docs []docstore.Document) {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		fn(ids)
	})
}

// SubscribeLiveSession calls fn with one athlete's snapshot, initially and
// after every change. exists is false once the snapshot is deleted.
func (db *DB) SubscribeLiveSession(ctx context.Context, athleteID string, fn func(s models.LiveSession, exists bool)) (docstore.Unsubscribe, error) {
	return db.Docs.SubscribeDocument(ctx, LiveSessions, athleteID, func(snap docstore.Snapshot) {
		if !snap.Exists {
			fn(models.LiveSession{AthleteID: athleteID}, false)
			return
		}
		s, err := decodeLive(snap.ID, snap.Data)
		if err != nil {
			return
		}
		fn(s, true)
	})
}

func decodeLive(id string, data map[string]any) (models.LiveSession, error) {
	var s models.LiveSession
	if err := docstore.Decode(data, &s); err != nil {
		return s, err
	}
	s.AthleteID = id
	return s, nil
}

func decodeLiveDocs(docs []docstore.Document) ([]models.LiveSession, error) {
	result := make([]models.LiveSession, 0, len(docs))
	for _, d := range docs {
		s, err := decodeLive(d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}
