// Package tracker runs an athlete's workout session: it walks the routine's
// playlist, records per-step progress, and keeps the athlete's live snapshot
// up to date for the coach dashboard.
//
// Writes are best effort. A failed write is logged and reported through the
// Notifier; the in-memory cursor and progress stay authoritative for the rest
// of the session.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/playlist"
	"github.com/meltforce/gymdesk/internal/timer"
)

// DefaultHeartbeat is how often the live snapshot is refreshed while idle.
const DefaultHeartbeat = 15 * time.Second

// ErrSessionEnded is returned by operations after End.
var ErrSessionEnded = errors.New("session ended")

// Identity is the athlete running the session. AthleteID keys the live snapshot.
type Identity struct {
	AthleteID string
	TenantID  string
}

// ProgressStore persists a single progress key of a routine.
type ProgressStore interface {
	SetProgress(ctx context.Context, routineID, key string, entry models.ProgressEntry) error
}

// LiveStore holds athletes' live snapshots.
type LiveStore interface {
	UpsertLiveSession(ctx context.Context, athleteID string, patch models.LivePatch) error
	DeleteLiveSession(ctx context.Context, athleteID string) error
}

// Notifier shows a short message to the athlete. Notify must not block.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Options tune a Tracker. Zero values pick defaults.
type Options struct {
	Heartbeat time.Duration
	Cue       timer.Cue
	Now       func() time.Time
}

// Tracker is safe for concurrent use; the heartbeat loop and user commands
// typically run on different goroutines.
type Tracker struct {
	id       Identity
	routine  models.Routine
	steps    []playlist.Step
	progress ProgressStore
	live     LiveStore
	notifier Notifier
	log      *slog.Logger
	opts     Options

	mu             sync.Mutex
	index          int
	entries        map[string]models.ProgressEntry
	lastDifficulty models.Difficulty
	timer          *timer.Timer
	ended          bool
}

// New prepares a session for routine. Nothing is written until Start.
func New(id Identity, routine models.Routine, progress ProgressStore, live LiveStore, notifier Notifier, log *slog.Logger, opts Options) (*Tracker, error) {
	if id.AthleteID == "" {
		return nil, errors.New("athlete id is required")
	}
	steps := playlist.Build(routine.Blocks)
	if len(steps) == 0 {
		return nil, fmt.Errorf("routine %s has no steps", routine.ID)
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}

	t := &Tracker{
		id:       id,
		routine:  routine,
		steps:    steps,
		progress: progress,
		live:     live,
		notifier: notifier,
		log:      log.With("athlete", id.AthleteID, "routine", routine.ID),
		opts:     opts,
		entries:  make(map[string]models.ProgressEntry, len(routine.Progress)),
	}
	maps.Copy(t.entries, routine.Progress)
	t.resetTimerLocked()
	return t, nil
}

// Start publishes the full live snapshot for the first step.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return ErrSessionEnded
	}
	now := t.opts.Now().UTC()
	patch := t.statusPatchLocked(now)
	patch.TenantID = &t.id.TenantID
	patch.RoutineID = &t.routine.ID
	patch.RoutineName = &t.routine.Name
	patch.StartedAt = &now
	patch.Status = models.Ptr(models.LiveActive)
	t.writeLive(ctx, patch)
	return nil
}

// Advance moves to the next step. At the last step it publishes the
// completed status, ends the session and reports ended.
func (t *Tracker) Advance(ctx context.Context) (ended bool, err error) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return false, ErrSessionEnded
	}
	if t.index >= len(t.steps)-1 {
		patch := t.statusPatchLocked(t.opts.Now().UTC())
		patch.Status = models.Ptr(models.LiveCompleted)
		t.writeLive(ctx, patch)
		t.mu.Unlock()
		t.End(ctx)
		return true, nil
	}
	t.index++
	t.resetTimerLocked()
	t.publishLocked(ctx)
	t.mu.Unlock()
	return false, nil
}

// Retreat moves to the previous step. At the first step it does nothing.
func (t *Tracker) Retreat(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return ErrSessionEnded
	}
	if t.index == 0 {
		return nil
	}
	t.index--
	t.resetTimerLocked()
	t.publishLocked(ctx)
	return nil
}

// SetCompletion marks step key done or not done.
func (t *Tracker) SetCompletion(ctx context.Context, key string, completed bool) error {
	return t.updateEntry(ctx, key, func(e *models.ProgressEntry) {
		e.Completed = completed
	}, false)
}

// SetDifficulty rates step key and republishes the live snapshot with it.
func (t *Tracker) SetDifficulty(ctx context.Context, key string, d models.Difficulty) error {
	if !d.Valid() {
		return &models.ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", d)}
	}
	return t.updateEntry(ctx, key, func(e *models.ProgressEntry) {
		e.Difficulty = d
	}, true)
}

func (t *Tracker) updateEntry(ctx context.Context, key string, mutate func(*models.ProgressEntry), rated bool) error {
	if !playlist.Contains(t.routine.Blocks, key) {
		return &models.ValidationError{Field: "key", Message: fmt.Sprintf("step %q is not part of this routine", key)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return ErrSessionEnded
	}
	entry := t.entries[key]
	mutate(&entry)
	t.entries[key] = entry

	if err := t.progress.SetProgress(ctx, t.routine.ID, key, entry); err != nil {
		t.fail("saving progress failed", err, "key", key)
	}
	if rated {
		t.lastDifficulty = entry.Difficulty
		t.publishLocked(ctx)
	}
	return nil
}

// PublishLiveStatus merge-writes the current cursor into the live snapshot.
func (t *Tracker) PublishLiveStatus(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return ErrSessionEnded
	}
	t.publishLocked(ctx)
	return nil
}

// Run publishes on every heartbeat until ctx is cancelled, then ends the session.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.opts.Heartbeat)
	defer ticker.Stop()
	t.RunHeartbeat(ctx, ticker.C)
}

// RunHeartbeat publishes on every tick until ctx is cancelled or the session
// ends. On cancellation the live snapshot is deleted before returning.
func (t *Tracker) RunHeartbeat(ctx context.Context, ticks <-chan time.Time) {
	defer func() {
		// ctx is already done; teardown needs its own.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		t.End(cctx)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if err := t.PublishLiveStatus(ctx); errors.Is(err, ErrSessionEnded) {
				return
			}
		}
	}
}

// End deletes the live snapshot. Only the first call does anything.
func (t *Tracker) End(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return
	}
	t.ended = true
	if t.timer != nil {
		t.timer.Reset()
	}
	if err := t.live.DeleteLiveSession(ctx, t.id.AthleteID); err != nil {
		t.fail("ending live session failed", err)
		return
	}
	t.log.Info("session ended", "index", t.index, "steps", len(t.steps))
}

// Ended reports whether End has run.
func (t *Tracker) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// Current returns the step under the cursor.
func (t *Tracker) Current() playlist.Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps[t.index]
}

// Index returns the cursor position.
func (t *Tracker) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Len returns the number of steps.
func (t *Tracker) Len() int {
	return len(t.steps)
}

// Steps returns the playlist.
func (t *Tracker) Steps() []playlist.Step {
	return t.steps
}

// Progress returns a copy of the in-memory progress.
func (t *Tracker) Progress() map[string]models.ProgressEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.entries)
}

// Timer returns the timer of the current step, or nil for reps exercises.
func (t *Tracker) Timer() *timer.Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer
}

func (t *Tracker) resetTimerLocked() {
	if t.timer != nil {
		t.timer.Reset()
	}
	ex := t.steps[t.index].Exercise
	if ex.Mode != models.ModeDuration {
		t.timer = nil
		return
	}
	t.timer = timer.New(timer.ParseDuration(ex.Target), t.opts.Cue)
}

func (t *Tracker) statusPatchLocked(now time.Time) models.LivePatch {
	step := t.steps[t.index]
	return models.LivePatch{
		CurrentExercise: models.Ptr(step.Exercise.Name),
		CurrentIndex:    models.Ptr(t.index),
		TotalSteps:      models.Ptr(len(t.steps)),
		LastDifficulty:  models.Ptr(t.lastDifficulty),
		UpdatedAt:       &now,
	}
}

func (t *Tracker) publishLocked(ctx context.Context) {
	t.writeLive(ctx, t.statusPatchLocked(t.opts.Now().UTC()))
}

func (t *Tracker) writeLive(ctx context.Context, patch models.LivePatch) {
	if err := t.live.UpsertLiveSession(ctx, t.id.AthleteID, patch); err != nil {
		t.fail("publishing live status failed", err)
	}
}

func (t *Tracker) fail(msg string, err error, args ...any) {
	t.log.Warn(msg, append(args, "error", err)...)
	t.notifier.Notify(msg)
}
