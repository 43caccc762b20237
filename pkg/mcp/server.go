package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/evoflow/internal/engine"
	"github.com/rendis/evoflow/internal/evolution"
	"github.com/rendis/evoflow/internal/scheduler"
	"github.com/rendis/evoflow/internal/store"
)

// Deps bundles the collaborators the tool handlers need.
type Deps struct {
	Engine     *engine.WorkflowEngine
	Optimizer  *evolution.Optimizer
	Evaluators *evolution.EvaluatorRegistry
	Strategies *evolution.StrategyRegistry
	Scheduler  *scheduler.Scheduler
	Runs       store.RunStore
	Logger     *slog.Logger
}

// NewServer builds the MCP server exposing the workflow and optimization
// tools over stdio.
func NewServer(version string, deps Deps) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		"evoflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	registerTools(s, deps)
	return s
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
