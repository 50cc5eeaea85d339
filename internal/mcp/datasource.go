package mcp

import (
	"context"

	"github.com/meltforce/gymdesk/internal/client"
	"github.com/meltforce/gymdesk/internal/models"
	"github.com/meltforce/gymdesk/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and *client.Client (remote via REST API) satisfy this interface.
type DataSource interface {
	ListLiveSessions(ctx context.Context, tenantID string) ([]models.LiveSession, error)
	GetRoutine(ctx context.Context, id string) (*models.Routine, error)
}

var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*client.Client)(nil)
)
