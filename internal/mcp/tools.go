package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/playlist"
)

// --- Tool definitions ---

var toolListLiveSessions = mcp.NewTool("list_live_sessions",
	mcp.WithDescription("List athletes currently running a workout in your gym: routine, current exercise, position in the playlist and last difficulty rating. Coaches and admins only."),
)

var toolGetRoutine = mcp.NewTool("get_routine",
	mcp.WithDescription("Retrieve a routine with its blocks, exercises and recorded progress."),
	mcp.WithString("routine_id", mcp.Required(), mcp.Description("Routine id")),
)

var toolGetRoutineProgress = mcp.NewTool("get_routine_progress",
	mcp.WithDescription("Summarise an athlete's progress through a routine. Returns the completion ratio and, for each playlist step, whether it was completed and how hard it felt."),
	mcp.WithString("routine_id", mcp.Required(), mcp.Description("Routine id")),
)

var toolGetPlaylist = mcp.NewTool("get_playlist",
	mcp.WithDescription("Expand a routine into the ordered steps an athlete works through: every exercise of every set, block by block."),
	mcp.WithString("routine_id", mcp.Required(), mcp.Description("Routine id")),
)

// ProgressStep is one playlist step with the athlete's record for it.
type ProgressStep struct {
	Key        string            `json:"key"`
	Exercise   string            `json:"exercise"`
	Block      string            `json:"block,omitempty"`
	Set        int               `json:"set"`
	SetCount   int               `json:"set_count"`
	Completed  bool              `json:"completed"`
	Difficulty models.Difficulty `json:"difficulty,omitempty"`
}

// ProgressSummary is the result of get_routine_progress.
type ProgressSummary struct {
	RoutineID string         `json:"routine_id"`
	Name      string         `json:"name"`
	MemberID  string         `json:"member_id"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Ratio     float64        `json:"ratio"`
	Steps     []ProgressStep `json:"steps"`
}

func summarize(r *models.Routine) ProgressSummary {
	steps := playlist.Build(r.Blocks)
	sum := ProgressSummary{
		RoutineID: r.ID,
		Name:      r.Name,
		MemberID:  r.MemberID,
		Total:     len(steps),
		Steps:     make([]ProgressStep, 0, len(steps)),
	}
	for _, s := range steps {
		entry := r.Progress[s.Key]
		if entry.Completed {
			sum.Completed++
		}
		sum.Steps = append(sum.Steps, ProgressStep{
			Key:        s.Key,
			Exercise:   s.Exercise.Name,
			Block:      s.BlockName,
			Set:        s.SetIndex + 1,
			SetCount:   s.SetCount,
			Completed:  entry.Completed,
			Difficulty: entry.Difficulty,
		})
	}
	if sum.Total > 0 {
		sum.Ratio = float64(sum.Completed) / float64(sum.Total)
	}
	return sum
}

// --- Tool handlers ---

func (h *handlers) listLiveSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	if !id.Has(models.RoleAdmin, models.RoleCoach) {
		return mcp.NewToolResultError("live sessions are visible to coaches and admins only"), nil
	}

	sessions, err := h.ds.ListLiveSessions(ctx, id.TenantID)
	if err != nil {
		h.log.Error("mcp list_live_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// routine loads the requested routine if the caller may see it. A non-nil
// result is the error to return to the client.
func (h *handlers) routine(ctx context.Context, req mcp.CallToolRequest) (*models.Routine, *mcp.CallToolResult) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, mcp.NewToolResultError("not authenticated")
	}
	routineID, err := req.RequireString("routine_id")
	if err != nil {
		return nil, mcp.NewToolResultError("routine_id parameter is required")
	}

	r, err := h.ds.GetRoutine(ctx, routineID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, mcp.NewToolResultError("routine not found")
	}
	if err != nil {
		h.log.Error("mcp get routine", "routine", routineID, "error", err)
		return nil, mcp.NewToolResultError("query failed: " + err.Error())
	}
	if r.TenantID != id.TenantID {
		return nil, mcp.NewToolResultError("routine not found")
	}
	if id.Role == models.RoleAthlete && r.MemberID != id.UserID {
		return nil, mcp.NewToolResultError("routine belongs to another athlete")
	}
	return r, nil
}

func (h *handlers) getRoutine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, fail := h.routine(ctx, req)
	if fail != nil {
		return fail, nil
	}
	result, err := mcp.NewToolResultJSON(r)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRoutineProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, fail := h.routine(ctx, req)
	if fail != nil {
		return fail, nil
	}
	result, err := mcp.NewToolResultJSON(summarize(r))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPlaylist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, fail := h.routine(ctx, req)
	if fail != nil {
		return fail, nil
	}
	result, err := mcp.NewToolResultJSON(playlist.Build(r.Blocks))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
