// Package billing applies payment processor webhook events to tenants.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/meltforce/gymdesk/internal/models"
)

// Event types handled. Anything else is acknowledged and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// TenantMetadataKey correlates checkout sessions and subscriptions with a tenant.
const TenantMetadataKey = "tenant_id"

// ErrInvalidSignature is returned for payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Store is what the processor writes to. storage.DB implements it.
type Store interface {
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	UnmarkEvent(ctx context.Context, eventID string) error
	UpdateTenantBilling(ctx context.Context, t models.Tenant) error
}

// Outcome says what Handle did with an event.
type Outcome string

const (
	Applied   Outcome = "applied"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
)

// Processor verifies and applies webhook deliveries.
type Processor struct {
	store  Store
	secret string
	log    *slog.Logger
}

// NewProcessor returns a Processor verifying payloads with secret.
func NewProcessor(store Store, secret string, log *slog.Logger) *Processor {
	return &Processor{store: store, secret: secret, log: log}
}

// Handle verifies payload against the Stripe-Signature header value and
// applies it. Each event id is applied at most once; a redelivery returns
// Duplicate. A failed apply is forgotten so the processor's retry can succeed.
func (p *Processor) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	log := p.log.With("event", event.ID, "type", string(event.Type))

	update, ok, err := tenantUpdate(event)
	if err != nil {
		return "", err
	}
	if !ok {
		log.Debug("ignoring webhook event")
		return Ignored, nil
	}

	first, err := p.store.MarkEventProcessed(ctx, event.ID, string(event.Type))
	if err != nil {
		return "", err
	}
	if !first {
		log.Info("duplicate webhook event")
		return Duplicate, nil
	}

	if err := p.store.UpdateTenantBilling(ctx, update); err != nil {
		if uerr := p.store.UnmarkEvent(ctx, event.ID); uerr != nil {
			log.Error("forgetting failed event", "error", uerr)
		}
		return "", fmt.Errorf("applying %s: %w", event.Type, err)
	}
	log.Info("billing updated", "tenant", update.ID, "status", update.SubscriptionStatus)
	return Applied, nil
}

// tenantUpdate maps an event to the tenant fields it changes. ok is false for
// event types that are not handled or carry no tenant.
func tenantUpdate(event stripe.Event) (models.Tenant, bool, error) {
	if event.Data == nil {
		return models.Tenant{}, false, nil
	}
	switch string(event.Type) {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return models.Tenant{}, false, fmt.Errorf("parsing checkout session: %w", err)
		}
		t := models.Tenant{
			ID:                 cs.Metadata[TenantMetadataKey],
			Plan:               cs.Metadata["plan"],
			SubscriptionStatus: string(stripe.SubscriptionStatusActive),
		}
		if cs.Customer != nil {
			t.CustomerID = cs.Customer.ID
		}
		if cs.Subscription != nil {
			t.SubscriptionID = cs.Subscription.ID
		}
		return t, t.ID != "", nil

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return models.Tenant{}, false, fmt.Errorf("parsing subscription: %w", err)
		}
		t := models.Tenant{
			ID:                 sub.Metadata[TenantMetadataKey],
			Plan:               sub.Metadata["plan"],
			SubscriptionID:     sub.ID,
			SubscriptionStatus: string(sub.Status),
		}
		if sub.Customer != nil {
			t.CustomerID = sub.Customer.ID
		}
		if string(event.Type) == EventSubscriptionDeleted {
			t.SubscriptionStatus = string(stripe.SubscriptionStatusCanceled)
		}
		return t, t.ID != "", nil
	}
	return models.Tenant{}, false, nil
}
