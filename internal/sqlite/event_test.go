package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/domain/activity"
)

func TestEventRepository_LogAndList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []activity.Entry{
		{ParticipantID: "p1", Condition: "WebSearch", TaskID: "GMO", Type: activity.TypeQuery, Data: `{"query":"a"}`, Delivered: true, CreatedAt: base},
		{ParticipantID: "p1", Condition: "WebSearch", TaskID: "GMO", Type: activity.TypeClick, Data: `{"url":"https://x"}`, Delivered: false, Error: "status 500", CreatedAt: base.Add(time.Second)},
		{ParticipantID: "p2", Condition: "ConvSearch", TaskID: "Nanotechnology", Type: activity.TypePrompt, Data: `{"prompt":"b"}`, Delivered: true, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range entries {
		require.NoError(t, repo.Log(ctx, &entries[i]))
		require.NotZero(t, entries[i].ID)
	}

	all, err := repo.List(ctx, activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "p2", all[0].ParticipantID, "newest first")

	p1, err := repo.List(ctx, activity.ListOptions{ParticipantID: "p1"})
	require.NoError(t, err)
	require.Len(t, p1, 2)
	require.Equal(t, activity.TypeClick, p1[0].Type)
	require.False(t, p1[0].Delivered)
	require.Equal(t, "status 500", p1[0].Error)
	require.Empty(t, p1[1].Error)

	lt := activity.TypePrompt
	prompts, err := repo.List(ctx, activity.ListOptions{Type: &lt})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Equal(t, "ConvSearch", prompts[0].Condition)

	page, err := repo.List(ctx, activity.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, activity.TypeClick, page[0].Type)

	tail, err := repo.List(ctx, activity.ListOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, activity.TypeQuery, tail[0].Type)
}

func TestEventRepository_DefaultsCreatedAt(t *testing.T) {
	db := NewTestDB(t)
	repo := NewEventRepository(db)

	entry := &activity.Entry{ParticipantID: "p1", Type: activity.TypeSessionEnd, Data: "{}"}
	require.NoError(t, repo.Log(context.Background(), entry))
	require.False(t, entry.CreatedAt.IsZero())
}
