package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/storage"
)

type assignmentStub struct {
	countsFn func(context.Context) ([]assignment.CellCount, error)
}

func (a assignmentStub) Counts(ctx context.Context) ([]assignment.CellCount, error) {
	return a.countsFn(ctx)
}

type sessionStub struct {
	snapshots []task.Progress
}

func (s sessionStub) Snapshots() []task.Progress { return s.snapshots }

type eventStub struct {
	recentFn func(context.Context, activity.ListOptions) ([]activity.Entry, error)
}

func (e eventStub) Recent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	return e.recentFn(ctx, opts)
}

func connect(t *testing.T, svc Services) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Services: svc, StudyID: "study"})
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func defaultServices() Services {
	return Services{
		Assignments: assignmentStub{countsFn: func(context.Context) ([]assignment.CellCount, error) {
			return []assignment.CellCount{
				{Key: "GMO__WebSearch", Count: 3},
				{Key: "GMO__ConvSearch", Count: 2},
			}, nil
		}},
		Sessions: sessionStub{snapshots: []task.Progress{
			{ParticipantID: "p1", Topic: "GMO", SystemType: assignment.WebSearch, Phase: task.PhaseActive, ElapsedSeconds: 30, InteractionCount: 2},
			{ParticipantID: "p2", Topic: "GMO", SystemType: assignment.ConvSearch, Phase: task.PhaseIntro, Scrapbook: []task.Item{{ID: "i1"}}},
		}},
		Events: eventStub{recentFn: func(_ context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
			return []activity.Entry{{
				ID:            7,
				ParticipantID: opts.ParticipantID,
				Type:          activity.TypeQuery,
				Data:          `{"query":"gmo"}`,
				Delivered:     true,
				CreatedAt:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			}}, nil
		}},
	}
}

func TestListTools(t *testing.T) {
	cs := connect(t, defaultServices())
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"cell_counts", "list_sessions", "recent_events"}, names)
}

func TestCellCounts(t *testing.T) {
	cs := connect(t, defaultServices())

	var out CellCountsResult
	res := callTool(t, cs, "cell_counts", nil, &out)
	require.False(t, res.IsError)
	require.Equal(t, 5, out.Total)
	require.Len(t, out.Cells, 2)
	require.Equal(t, "GMO__WebSearch", out.Cells[0].Key)
}

func TestCellCounts_StorageError(t *testing.T) {
	svc := defaultServices()
	svc.Assignments = assignmentStub{countsFn: func(context.Context) ([]assignment.CellCount, error) {
		return nil, errors.Join(storage.ErrUnavailable, errors.New("disk"))
	}}
	cs := connect(t, svc)

	res := callTool(t, cs, "cell_counts", nil, nil)
	require.True(t, res.IsError)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "STORAGE_UNAVAILABLE")
}

func TestListSessions(t *testing.T) {
	cs := connect(t, defaultServices())

	var out ListSessionsResult
	callTool(t, cs, "list_sessions", nil, &out)
	require.Len(t, out.Sessions, 2)
	require.Equal(t, 1, out.Sessions[1].ScrapbookItems)

	out = ListSessionsResult{}
	callTool(t, cs, "list_sessions", map[string]any{"phase": "active"}, &out)
	require.Len(t, out.Sessions, 1)
	require.Equal(t, "p1", out.Sessions[0].ParticipantID)
	require.Equal(t, 30, out.Sessions[0].ElapsedSeconds)

	res := callTool(t, cs, "list_sessions", map[string]any{"phase": "paused"}, nil)
	require.True(t, res.IsError)
}

func TestRecentEvents(t *testing.T) {
	var got activity.ListOptions
	svc := defaultServices()
	base := svc.Events.(eventStub)
	svc.Events = eventStub{recentFn: func(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
		got = opts
		return base.recentFn(ctx, opts)
	}}
	cs := connect(t, svc)

	var out RecentEventsResult
	callTool(t, cs, "recent_events", map[string]any{"participant_id": "p1", "log_type": "query", "limit": 1000}, &out)
	require.Equal(t, "p1", got.ParticipantID)
	require.NotNil(t, got.Type)
	require.Equal(t, activity.TypeQuery, *got.Type)
	require.Equal(t, maxEventLimit, got.Limit)

	require.Len(t, out.Events, 1)
	require.Equal(t, "query", out.Events[0].LogType)
	require.Equal(t, "2025-03-01T00:00:00Z", out.Events[0].CreatedAt)

	res := callTool(t, cs, "recent_events", map[string]any{"log_type": "mouse"}, nil)
	require.True(t, res.IsError)
}

func TestDocResources(t *testing.T) {
	cs := connect(t, defaultServices())
	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "study://docs/design"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "least-filled cell")
}
