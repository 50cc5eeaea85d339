package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/tracker"
)

// TestParseCommand verifies aliases collapse to their short form.
func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{}},
		{"   ", command{}},
		{"n", command{name: "n"}},
		{"Next", command{name: "n"}},
		{"prev", command{name: "b"}},
		{"HARD", command{name: "h"}},
		{"timer now", command{name: "t", arg: "now"}},
		{"exit", command{name: "q"}},
		{"?", command{name: "?"}},
	}
	for _, tt := range tests {
		if got := parseCommand(tt.line); got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

type memStore struct {
	progress map[string]models.ProgressEntry
	deleted  bool
}

func (m *memStore) SetProgress(_ context.Context, _, key string, e models.ProgressEntry) error {
	m.progress[key] = e
	return nil
}
func (m *memStore) UpsertLiveSession(context.Context, string, models.LivePatch) error { return nil }
func (m *memStore) DeleteLiveSession(context.Context, string) error {
	m.deleted = true
	return nil
}

// TestExecuteWalksRoutine verifies the commands drive the tracker to the end.
func TestExecuteWalksRoutine(t *testing.T) {
	store := &memStore{progress: map[string]models.ProgressEntry{}}
	routine := models.Routine{ID: "r1", Blocks: []models.Block{{
		Sets:      "1",
		Exercises: []models.Exercise{{Name: "Squat", Mode: models.ModeReps}, {Name: "Plank", Mode: models.ModeDuration, Target: "30s"}},
	}}}
	tr, err := tracker.New(tracker.Identity{AthleteID: "ath1", TenantID: "t1"}, routine, store, store, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)), tracker.Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, line := range []string{"d", "m", "n", "t"} {
		if quit, err := execute(ctx, tr, parseCommand(line)); quit || err != nil {
			t.Fatalf("%q: quit=%v err=%v", line, quit, err)
		}
	}
	if e := store.progress["0-0-0"]; !e.Completed || e.Difficulty != models.DifficultyMedium {
		t.Errorf("progress = %+v", e)
	}
	if tr.Timer() == nil {
		t.Fatal("expected a timer on the duration step")
	}

	quit, err := execute(ctx, tr, parseCommand("n"))
	if err != nil || !quit || !store.deleted {
		t.Errorf("last next: quit=%v err=%v deleted=%v", quit, err, store.deleted)
	}
}
