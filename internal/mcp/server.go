// Package mcp exposes routines and live sessions to MCP clients.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered. Every
// handler reads the caller from auth.FromContext; the transport must put it there.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("GymDesk", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("GymDesk coaching server. Look up workout routines, an athlete's progress through them, and who is training right now. All data is scoped to the caller's gym."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListLiveSessions, Handler: h.listLiveSessions},
		server.ServerTool{Tool: toolGetRoutine, Handler: h.getRoutine},
		server.ServerTool{Tool: toolGetRoutineProgress, Handler: h.getRoutineProgress},
		server.ServerTool{Tool: toolGetPlaylist, Handler: h.getPlaylist},
	)

	s.AddResources(
		server.ServerResource{Resource: resLiveSessions, Handler: h.liveSessions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resLiveSessions = mcp.NewResource(
	"gymdesk://live_sessions",
	"Live Sessions",
	mcp.WithResourceDescription("Athletes currently working out in the caller's gym, with their current exercise and position"),
	mcp.WithMIMEType("application/json"),
)
