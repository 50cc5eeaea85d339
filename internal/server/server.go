package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/billing"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/storage"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       *storage.DB
	verifier *auth.Verifier
	billing  *billing.Processor
	log      *slog.Logger
	origins  []string
	router   chi.Router
}

// New creates a new Server with all routes configured. payments may be nil
// when no webhook secret is configured; the webhook route is then absent.
func New(db *storage.DB, verifier *auth.Verifier, payments *billing.Processor, origins []string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		verifier: verifier,
		billing:  payments,
		log:      log,
		origins:  origins,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(Tracing)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS(s.origins))

	s.router.Get("/healthz", s.handleHealth)

	// Signature verified by the processor, not by bearer token.
	if s.billing != nil {
		s.router.Post("/webhooks/stripe", s.handleStripeWebhook)
	}

	staff := RequireRole(models.RoleAdmin, models.RoleCoach)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(s.verifier))
		r.Get("/me", s.handleMe)

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", s.handleListRoutines)
			r.With(staff).Post("/", s.handleCreateRoutine)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRoutine)
				r.With(staff).Put("/", s.handleUpdateRoutine)
				r.With(staff).Delete("/", s.handleDeleteRoutine)
				r.Get("/playlist", s.handlePlaylist)
				r.Put("/progress/{key}", s.handleSetProgress)
			})
		})

		r.Route("/live", func(r chi.Router) {
			r.With(staff).Get("/", s.handleListLive)
			r.With(staff).Get("/stream", s.handleLiveStream)
			r.With(RequireRole(models.RoleAthlete)).Put("/", s.handlePutLive)
			r.With(RequireRole(models.RoleAthlete)).Delete("/", s.handleDeleteLive)
		})

		r.With(RequireRole(models.RoleAdmin)).Get("/tenant", s.handleTenant)
	})
}

// SetMCP mounts an MCP streamable HTTP handler at /mcp behind bearer auth.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(Authenticate(s.verifier)).Handle("/mcp", h)
}
