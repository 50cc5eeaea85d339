package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/models"
)

func (h *handlers) liveSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, ok := auth.FromContext(ctx)
	if !ok || !id.Has(models.RoleAdmin, models.RoleCoach) {
		return nil, errors.New("live sessions are visible to coaches and admins only")
	}

	sessions, err := h.ds.ListLiveSessions(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
