package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// GetTenant loads a tenant.
func (db *DB) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	doc, err := db.Docs.Get(ctx, Tenants, id)
	if err != nil {
		return nil, err
	}
	var t models.Tenant
	if err := docstore.Decode(doc.Data, &t); err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

// EnsureTenant creates a tenant with the given name if it does not exist.
func (db *DB) EnsureTenant(ctx context.Context, id, name string) error {
	data, err := docstore.Encode(models.Tenant{ID: id, Name: name, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	err = db.Docs.Create(ctx, Tenants, id, data)
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return fmt.Errorf("creating tenant: %w", err)
	}
	return nil
}

// UpdateTenantBilling merges the non-empty billing fields of t into the
// stored tenant, creating it if needed.
func (db *DB) UpdateTenantBilling(ctx context.Context, t models.Tenant) error {
	t.UpdatedAt = time.Now().UTC()
	data, err := docstore.Encode(t)
	if err != nil {
		return err
	}
	data["id"] = t.ID
	if err := db.Docs.Set(ctx, Tenants, t.ID, data, docstore.Merge()); err != nil {
		return fmt.Errorf("updating tenant billing: %w", err)
	}
	return nil
}

// MarkEventProcessed records a webhook event id. It reports false when the
// event was already recorded, so redeliveries can be acknowledged without
// being applied twice.
func (db *DB) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	err := db.Docs.Create(ctx, WebhookEvents, eventID, map[string]any{
		"type":         eventType,
		"processed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recording webhook event: %w", err)
	}
	return true, nil
}

// UnmarkEvent forgets a recorded webhook event so a failed delivery can be
// retried.
func (db *DB) UnmarkEvent(ctx context.Context, eventID string) error {
	return db.Docs.Delete(ctx, WebhookEvents, eventID)
}
