package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/dashboard"
	"github.com/meltforce/gymdesk/internal/models"
)

func (s *Server) handleListLive(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	sessions, err := s.db.ListLiveSessions(r.Context(), id.TenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handlePutLive merge-writes the caller's own snapshot. The tenant always
// comes from the token.
func (s *Server) handlePutLive(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var patch models.LivePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	patch.TenantID = &id.TenantID
	if patch.UpdatedAt == nil {
		patch.UpdatedAt = models.Ptr(time.Now().UTC())
	}
	if err := s.db.UpsertLiveSession(r.Context(), id.UserID, patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteLive(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if err := s.db.DeleteLiveSession(r.Context(), id.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLiveStream upgrades to a WebSocket and sends the tenant's full list
// of live sessions as JSON after every change, starting with the current one.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	ws := websocket.Server{
		// Bearer auth already ran; browsers on other origins are allowed by CORS.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			s.streamLive(r.Context(), conn, id.TenantID)
		},
	}
	ws.ServeHTTP(w, r)
}

func (s *Server) streamLive(ctx context.Context, conn *websocket.Conn, tenantID string) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Latest list wins; onChange calls are serialised by the aggregator.
	updates := make(chan []models.LiveSession, 1)
	agg := dashboard.New(s.db, tenantID, s.log, func(list []models.LiveSession) {
		select {
		case <-updates:
		default:
		}
		updates <- list
	})
	if err := agg.Start(ctx); err != nil {
		s.log.Error("live stream subscribe failed", "tenant", tenantID, "error", err)
		return
	}
	defer agg.Close()

	// Client messages are ignored; a read error means it went away.
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	send := func(list []models.LiveSession) bool {
		if list == nil {
			list = []models.LiveSession{}
		}
		if err := websocket.JSON.Send(conn, list); err != nil {
			s.log.Debug("live stream closed", "tenant", tenantID, "error", err)
			return false
		}
		return true
	}
	if !send(agg.Sessions()) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case list := <-updates:
			if !send(list) {
				return
			}
		}
	}
}
