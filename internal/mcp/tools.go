package mcp

import (
	"context"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/task"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// CellCountsParams takes no arguments.
type CellCountsParams struct{}

// CellCountsResult reports per-cell enrolment.
type CellCountsResult struct {
	Cells []assignment.CellCount `json:"cells"`
	Total int                    `json:"total"`
}

// ListSessionsParams filters live sessions.
type ListSessionsParams struct {
	Phase string `json:"phase,omitempty" jsonschema:"only sessions in this phase (intro, active, completed)"`
}

// SessionSummary is a compact view of one live task attempt.
type SessionSummary struct {
	ParticipantID    string                `json:"participant_id"`
	Topic            string                `json:"task_id"`
	SystemType       assignment.SystemType `json:"system_type"`
	Phase            task.Phase            `json:"phase"`
	ElapsedSeconds   int                   `json:"elapsed_seconds"`
	InteractionCount int                   `json:"interaction_count"`
	ScrapbookItems   int                   `json:"scrapbook_items"`
	CanAdvance       bool                  `json:"can_advance"`
}

// ListSessionsResult lists live sessions.
type ListSessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// RecentEventsParams filters the event journal.
type RecentEventsParams struct {
	ParticipantID string `json:"participant_id,omitempty" jsonschema:"only events for this participant"`
	LogType       string `json:"log_type,omitempty" jsonschema:"only events of this log type"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of events (default 50)"`
	Offset        int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

// EventView is one journal entry.
type EventView struct {
	ID            int64  `json:"id"`
	ParticipantID string `json:"participant_id"`
	Condition     string `json:"condition"`
	TaskID        string `json:"task_id"`
	LogType       string `json:"log_type"`
	LogData       string `json:"log_data"`
	Delivered     bool   `json:"delivered"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// RecentEventsResult lists journal entries, newest first.
type RecentEventsResult struct {
	Events []EventView `json:"events"`
}

func registerTools(server *sdkmcp.Server, svc Services) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "cell_counts",
		Description: "Show how many participants each topic and system cell has received",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ CellCountsParams) (*sdkmcp.CallToolResult, CellCountsResult, error) {
		counts, err := svc.Assignments.Counts(ctx)
		if err != nil {
			return nil, CellCountsResult{}, mapError(err)
		}
		total := 0
		for _, c := range counts {
			total += c.Count
		}
		return nil, CellCountsResult{Cells: counts, Total: total}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_sessions",
		Description: "List live task sessions with their timer, interaction count and gate status",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in ListSessionsParams) (*sdkmcp.CallToolResult, ListSessionsResult, error) {
		if in.Phase != "" && !task.Phase(in.Phase).Valid() {
			return nil, ListSessionsResult{}, &APIError{Code: "INVALID_PHASE", Message: "unknown phase " + in.Phase, RecoveryHint: "Use intro, active or completed"}
		}
		out := ListSessionsResult{Sessions: []SessionSummary{}}
		for _, p := range svc.Sessions.Snapshots() {
			if in.Phase != "" && string(p.Phase) != in.Phase {
				continue
			}
			out.Sessions = append(out.Sessions, SessionSummary{
				ParticipantID:    p.ParticipantID,
				Topic:            p.Topic,
				SystemType:       p.SystemType,
				Phase:            p.Phase,
				ElapsedSeconds:   p.ElapsedSeconds,
				InteractionCount: p.InteractionCount,
				ScrapbookItems:   len(p.Scrapbook),
				CanAdvance:       p.CanAdvance,
			})
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_events",
		Description: "Read the local journal of interaction events and their delivery outcome, newest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentEventsParams) (*sdkmcp.CallToolResult, RecentEventsResult, error) {
		opts := activity.ListOptions{
			ParticipantID: in.ParticipantID,
			Limit:         in.Limit,
			Offset:        in.Offset,
		}
		if opts.Limit <= 0 {
			opts.Limit = defaultEventLimit
		}
		if opts.Limit > maxEventLimit {
			opts.Limit = maxEventLimit
		}
		if in.LogType != "" {
			t := activity.LogType(in.LogType)
			if !t.Valid() {
				return nil, RecentEventsResult{}, &APIError{Code: "INVALID_LOG_TYPE", Message: "unknown log type " + in.LogType}
			}
			opts.Type = &t
		}
		entries, err := svc.Events.Recent(ctx, opts)
		if err != nil {
			return nil, RecentEventsResult{}, mapError(err)
		}
		out := RecentEventsResult{Events: make([]EventView, 0, len(entries))}
		for _, e := range entries {
			out.Events = append(out.Events, EventView{
				ID:            e.ID,
				ParticipantID: e.ParticipantID,
				Condition:     e.Condition,
				TaskID:        e.TaskID,
				LogType:       string(e.Type),
				LogData:       e.Data,
				Delivered:     e.Delivered,
				Error:         e.Error,
				CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
			})
		}
		return nil, out, nil
	})
}
