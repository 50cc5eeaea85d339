package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/playlist"
)

func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	member := r.URL.Query().Get("member_id")
	if id.Role == models.RoleAthlete {
		member = id.UserID
	}
	routines, err := s.db.ListRoutines(r.Context(), id.TenantID, member)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routines)
}

func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var in models.Routine
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = ""
	in.TenantID = id.TenantID
	in.Progress = nil
	if in.CoachID == "" {
		in.CoachID = id.UserID
	}
	created, err := s.db.CreateRoutine(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// loadRoutine fetches the routine named in the URL and checks the caller may
// see it. Athletes only see their own routines. Writes the error response
// and returns nil when access fails.
func (s *Server) loadRoutine(w http.ResponseWriter, r *http.Request) *models.Routine {
	id, _ := auth.FromContext(r.Context())
	routine, err := s.db.GetRoutine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil
	}
	if routine.TenantID != id.TenantID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return nil
	}
	if id.Role == models.RoleAthlete && routine.MemberID != id.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return nil
	}
	return routine
}

func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	routine := s.loadRoutine(w, r)
	if routine == nil {
		return
	}
	writeJSON(w, http.StatusOK, routine)
}

func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	existing := s.loadRoutine(w, r)
	if existing == nil {
		return
	}
	var in models.Routine
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = existing.ID
	in.TenantID = existing.TenantID
	updated, err := s.db.UpdateRoutine(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	routine := s.loadRoutine(w, r)
	if routine == nil {
		return
	}
	if err := s.db.DeleteRoutine(r.Context(), routine.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	routine := s.loadRoutine(w, r)
	if routine == nil {
		return
	}
	writeJSON(w, http.StatusOK, playlist.Build(routine.Blocks))
}

// handleSetProgress writes a single progress key. Only the athlete the
// routine belongs to may record progress.
func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	routine := s.loadRoutine(w, r)
	if routine == nil {
		return
	}
	id, _ := auth.FromContext(r.Context())
	if routine.MemberID != id.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the assigned athlete can record progress"})
		return
	}

	key := chi.URLParam(r, "key")
	if !playlist.Contains(routine.Blocks, key) {
		s.writeError(w, r, &models.ValidationError{Field: "key", Message: fmt.Sprintf("step %q is not part of this routine", key)})
		return
	}
	var entry models.ProgressEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	if !entry.Difficulty.Valid() {
		s.writeError(w, r, &models.ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", entry.Difficulty)})
		return
	}
	if err := s.db.SetProgress(r.Context(), routine.ID, key, entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
