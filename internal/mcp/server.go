// Package mcp exposes the researcher console as an MCP server.
package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/task"
)

// AssignmentService reports cell balance.
type AssignmentService interface {
	Counts(ctx context.Context) ([]assignment.CellCount, error)
}

// SessionService lists live task attempts.
type SessionService interface {
	Snapshots() []task.Progress
}

// EventService reads the local event journal.
type EventService interface {
	Recent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains the domain services the console reads from.
type Services struct {
	Assignments AssignmentService
	Sessions    SessionService
	Events      EventService
}

// Config contains server configuration.
type Config struct {
	Services Services
	StudyID  string
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures the console server with all tools.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "searchstudy-console",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, cfg.StudyID, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, cfg.StudyID, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
