package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/billing"
)

// maxWebhookBody bounds webhook payloads; Stripe events are far smaller.
const maxWebhookBody = 65536

func (s *Server) handleTenant(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	tenant, err := s.db.GetTenant(r.Context(), id.TenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	outcome, err := s.billing.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, billing.ErrInvalidSignature) {
		s.log.Warn("rejected webhook", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
