package sweep

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	docs, err := docstore.OpenSQLite(filepath.Join(t.TempDir(), "s.db"), discard)
	if err != nil {
		t.Fatal(err)
	}
	db := storage.New(docs)
	t.Cleanup(db.Close)
	return db
}

// TestSweepDeletesOnlyStale verifies fresh snapshots survive a pass.
func TestSweepDeletesOnlyStale(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	now := time.Now().UTC()
	db.UpsertLiveSession(ctx, "gone", models.LivePatch{TenantID: models.Ptr("t1"), UpdatedAt: models.Ptr(now.Add(-30 * time.Minute))})
	db.UpsertLiveSession(ctx, "here", models.LivePatch{TenantID: models.Ptr("t1"), UpdatedAt: models.Ptr(now.Add(-time.Minute))})

	n, err := New(db, 10*time.Minute, discard).Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	left, _ := db.ListLiveSessions(ctx, "t1")
	if len(left) != 1 || left[0].AthleteID != "here" {
		t.Errorf("remaining = %+v", left)
	}
}

// TestScheduleRejectsBadSpec verifies a malformed schedule is reported up front.
func TestScheduleRejectsBadSpec(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := New(openDB(t), time.Minute, discard).Schedule(ctx, "whenever"); err == nil {
		t.Error("expected error for bad schedule")
	}
}

// TestScheduleRuns verifies the cron job sweeps without a manual call.
func TestScheduleRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db := openDB(t)
	db.UpsertLiveSession(ctx, "gone", models.LivePatch{TenantID: models.Ptr("t1"), UpdatedAt: models.Ptr(time.Now().Add(-time.Hour))})

	if err := New(db, time.Minute, discard).Schedule(ctx, "@every 1s"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if left, _ := db.ListLiveSessions(ctx, "t1"); len(left) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("scheduled sweep did not run")
}
