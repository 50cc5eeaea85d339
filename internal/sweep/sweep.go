// Package sweep deletes live-session snapshots that stopped receiving
// heartbeats, for clients that died without cleaning up.
//
// It is opt-in: without it a stale snapshot stays visible until someone
// removes it.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron"

	"github.com/meltforce/gymdesk/internal/models"
)

// Store lists and deletes snapshots. storage.DB implements it.
type Store interface {
	ListStaleLiveSessions(ctx context.Context, cutoff time.Time) ([]models.LiveSession, error)
	DeleteLiveSession(ctx context.Context, athleteID string) error
}

// Sweeper removes snapshots older than MaxAge.
type Sweeper struct {
	store  Store
	maxAge time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// New returns a Sweeper.
func New(store Store, maxAge time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{store: store, maxAge: maxAge, log: log, now: time.Now}
}

// Sweep runs one pass and returns how many snapshots were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	stale, err := s.store.ListStaleLiveSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale sessions: %w", err)
	}
	n := 0
	for _, ls := range stale {
		if err := s.store.DeleteLiveSession(ctx, ls.AthleteID); err != nil {
			s.log.Warn("deleting stale live session failed", "athlete", ls.AthleteID, "error", err)
			continue
		}
		s.log.Info("deleted stale live session",
			"athlete", ls.AthleteID,
			"tenant", ls.TenantID,
			"last_update", ls.UpdatedAt.Format(time.RFC3339),
		)
		n++
	}
	return n, nil
}

// Schedule runs Sweep on the cron schedule (e.g. "@every 1m") until ctx is done.
func (s *Sweeper) Schedule(ctx context.Context, schedule string) error {
	c := cron.New()
	err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("live session sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}
