package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

type fakeSource struct {
	routines map[string]*models.Routine
	live     map[string][]models.LiveSession
}

func (f *fakeSource) ListLiveSessions(_ context.Context, tenantID string) ([]models.LiveSession, error) {
	return f.live[tenantID], nil
}

func (f *fakeSource) GetRoutine(_ context.Context, id string) (*models.Routine, error) {
	r, ok := f.routines[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return r, nil
}

func newFake() *fakeSource {
	return &fakeSource{
		routines: map[string]*models.Routine{
			"r1": {
				ID:       "r1",
				TenantID: "t1",
				MemberID: "ath1",
				Name:     "Upper",
				Blocks: []models.Block{{
					Sets: "2",
					Exercises: []models.Exercise{
						{Name: "Press", Mode: models.ModeReps, Target: "8"},
						{Name: "Row", Mode: models.ModeReps, Target: "10"},
					},
				}},
				Progress: map[string]models.ProgressEntry{
					"0-0-0": {Completed: true, Difficulty: models.DifficultyEasy},
					"0-1-0": {Completed: true},
					"0-0-1": {Completed: false, Difficulty: models.DifficultyHard},
				},
			},
		},
		live: map[string][]models.LiveSession{
			"t1": {{AthleteID: "ath1", TenantID: "t1", CurrentExercise: "Press", Status: models.LiveActive}},
		},
	}
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func as(role models.Role, user, tenant string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: user, TenantID: tenant, Role: role})
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

// TestNewRegistersTools verifies the server can be built with a data source.
func TestNewRegistersTools(t *testing.T) {
	if s := New(newFake(), "test", slog.New(slog.NewTextHandler(io.Discard, nil))); s == nil {
		t.Fatal("nil server")
	}
}

// TestSummarize verifies the completion ratio and per-step view follow
// playlist order.
func TestSummarize(t *testing.T) {
	sum := summarize(newFake().routines["r1"])
	if sum.Total != 4 || sum.Completed != 2 {
		t.Fatalf("completed %d/%d, want 2/4", sum.Completed, sum.Total)
	}
	if sum.Ratio != 0.5 {
		t.Errorf("ratio = %v, want 0.5", sum.Ratio)
	}
	var keys []string
	for _, s := range sum.Steps {
		keys = append(keys, s.Key)
	}
	if diff := cmp.Diff([]string{"0-0-0", "0-1-0", "0-0-1", "0-1-1"}, keys); diff != "" {
		t.Errorf("step order (-want +got):\n%s", diff)
	}
	if sum.Steps[2].Difficulty != models.DifficultyHard || sum.Steps[2].Set != 2 {
		t.Errorf("step 2 = %+v", sum.Steps[2])
	}
}

// TestSummarizeEmpty verifies a routine without steps reports a zero ratio.
func TestSummarizeEmpty(t *testing.T) {
	if sum := summarize(&models.Routine{ID: "x"}); sum.Ratio != 0 || sum.Total != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

// TestGetRoutineAccess verifies tenant and athlete scoping of routine tools.
func TestGetRoutineAccess(t *testing.T) {
	h := newHandlers(newFake())
	tests := []struct {
		name    string
		ctx     context.Context
		args    map[string]any
		wantErr bool
	}{
		{"owner", as(models.RoleAthlete, "ath1", "t1"), map[string]any{"routine_id": "r1"}, false},
		{"coach", as(models.RoleCoach, "c1", "t1"), map[string]any{"routine_id": "r1"}, false},
		{"other athlete", as(models.RoleAthlete, "ath2", "t1"), map[string]any{"routine_id": "r1"}, true},
		{"other tenant", as(models.RoleAdmin, "a9", "t9"), map[string]any{"routine_id": "r1"}, true},
		{"missing", as(models.RoleCoach, "c1", "t1"), map[string]any{"routine_id": "nope"}, true},
		{"no argument", as(models.RoleCoach, "c1", "t1"), map[string]any{}, true},
		{"anonymous", context.Background(), map[string]any{"routine_id": "r1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.getRoutine(tt.ctx, call(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if res.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (%s)", res.IsError, tt.wantErr, resultText(t, res))
			}
		})
	}
}

// TestGetRoutineProgressTool verifies the tool returns the summary as JSON.
func TestGetRoutineProgressTool(t *testing.T) {
	h := newHandlers(newFake())
	res, err := h.getRoutineProgress(as(models.RoleAthlete, "ath1", "t1"), call(map[string]any{"routine_id": "r1"}))
	if err != nil || res.IsError {
		t.Fatalf("result = %+v, err = %v", res, err)
	}
	var sum ProgressSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Completed != 2 || sum.Total != 4 {
		t.Errorf("summary = %d/%d", sum.Completed, sum.Total)
	}
}

// TestListLiveSessionsTool verifies only staff can list live sessions.
func TestListLiveSessionsTool(t *testing.T) {
	h := newHandlers(newFake())

	res, err := h.listLiveSessions(as(models.RoleAthlete, "ath1", "t1"), call(nil))
	if err != nil || !res.IsError {
		t.Errorf("athlete: IsError = %v, err = %v; want tool error", res.IsError, err)
	}

	res, err = h.listLiveSessions(as(models.RoleCoach, "c1", "t1"), call(nil))
	if err != nil || res.IsError {
		t.Fatalf("coach: %+v, %v", res, err)
	}
	var got []models.LiveSession
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].AthleteID != "ath1" {
		t.Errorf("sessions = %+v", got)
	}
}

// TestLiveSessionsResource verifies the resource is tenant-scoped JSON.
func TestLiveSessionsResource(t *testing.T) {
	h := newHandlers(newFake())
	var req mcp.ReadResourceRequest
	req.Params.URI = "gymdesk://live_sessions"

	contents, err := h.liveSessions(as(models.RoleAdmin, "a1", "t1"), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != req.Params.URI || text.MIMEType != "application/json" {
		t.Errorf("contents = %+v", text)
	}

	if _, err := h.liveSessions(as(models.RoleAthlete, "ath1", "t1"), req); err == nil {
		t.Error("athlete read live sessions resource")
	}
}
