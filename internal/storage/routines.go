package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// CreateRoutine validates and stores a new routine. An empty ID is filled
// with a fresh UUID. Returns the stored routine.
func (db *DB) CreateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	data, err := docstore.Encode(r)
	if err != nil {
		return nil, err
	}
	if err := db.Docs.Create(ctx, Routines, r.ID, data); err != nil {
		return nil, fmt.Errorf("inserting routine: %w", err)
	}
	return &r, nil
}

// GetRoutine loads one routine.
func (db *DB) GetRoutine(ctx context.Context, id string) (*models.Routine, error) {
	doc, err := db.Docs.Get(ctx, Routines, id)
	if err != nil {
		return nil, err
	}
	var r models.Routine
	if err := docstore.Decode(doc.Data, &r); err != nil {
		return nil, err
	}
	r.ID = id
	return &r, nil
}

// ListRoutines returns a tenant's routines ordered by scheduled date, then
// name. A non-empty memberID restricts the list to that athlete.
func (db *DB) ListRoutines(ctx context.Context, tenantID, memberID string) ([]models.Routine, error) {
	docs, err := db.Docs.Query(ctx, docstore.Query{Collection: Routines, Field: "tenant_id", Equals: tenantID})
	if err != nil {
		return nil, fmt.Errorf("listing routines: %w", err)
	}
	result := make([]models.Routine, 0, len(docs))
	for _, d := range docs {
		var r models.Routine
		if err := docstore.Decode(d.Data, &r); err != nil {
			return nil, err
		}
		r.ID = d.ID
		if memberID != "" && r.MemberID != memberID {
			continue
		}
		result = append(result, r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ScheduledDate != result[j].ScheduledDate {
			return result[i].ScheduledDate < result[j].ScheduledDate
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// UpdateRoutine replaces a routine's editable fields (name, member, coach,
// date, blocks). Recorded progress is kept.
func (db *DB) UpdateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	existing, err := db.GetRoutine(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	existing.Name = r.Name
	existing.ScheduledDate = r.ScheduledDate
	existing.Blocks = r.Blocks
	if r.MemberID != "" {
		existing.MemberID = r.MemberID
	}
	if r.CoachID != "" {
		existing.CoachID = r.CoachID
	}
	existing.UpdatedAt = time.Now().UTC()

	data, err := docstore.Encode(map[string]any{
		"name":           existing.Name,
		"scheduled_date": existing.ScheduledDate,
		"blocks":         existing.Blocks,
		"member_id":      existing.MemberID,
		"coach_id":       existing.CoachID,
		"updated_at":     existing.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Docs.Set(ctx, Routines, r.ID, data, docstore.Merge()); err != nil {
		return nil, fmt.Errorf("updating routine: %w", err)
	}
	return existing, nil
}

// DeleteRoutine removes a routine.
func (db *DB) DeleteRoutine(ctx context.Context, id string) error {
	if _, err := db.Docs.Get(ctx, Routines, id); err != nil {
		return err
	}
	return db.Docs.Delete(ctx, Routines, id)
}

// SetProgress writes the progress entry for a single step key, leaving every
// other key of the routine's progress untouched.
func (db *DB) SetProgress(ctx context.Context, routineID, key string, entry models.ProgressEntry) error {
	if key == "" || strings.Contains(key, ".") {
		return &models.ValidationError{Field: "key", Message: fmt.Sprintf("invalid step key %q", key)}
	}
	err := db.Docs.Update(ctx, Routines, routineID, "progress."+key, entry)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("writing progress %s/%s: %w", routineID, key, err)
	}
	return err
}
