package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestScrapbook_Mutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assignment.WebSearch)

	_, err := f.ctrl.AddNote(ctx, "too early")
	require.ErrorIs(t, err, task.ErrInvalidPhase)

	activate(t, f.ctrl)

	clip, err := f.ctrl.AddClipping(ctx, task.Reference{Title: "WHO Q&A", Snippet: "GM foods currently available have passed safety assessments", Link: "https://who.int/gmo"})
	require.NoError(t, err)
	require.Equal(t, task.KindClipping, clip.Kind)
	require.Equal(t, "WebSearch", clip.SourceTag)

	ref, err := f.ctrl.AddWebReference(ctx, task.Reference{Title: "FDA", Link: "https://fda.gov/food", SourceTag: "citation"})
	require.NoError(t, err)
	require.Equal(t, task.KindWebRef, ref.Kind)
	require.Equal(t, "citation", ref.SourceTag)

	note, err := f.ctrl.AddNote(ctx, "  compare with EU rules ")
	require.NoError(t, err)
	require.Equal(t, "compare with EU rules", note.Comment)

	_, err = f.ctrl.AddNote(ctx, "   ")
	require.ErrorIs(t, err, task.ErrBlankInput)

	updated, err := f.ctrl.UpdateComment(ctx, 1, "primary source")
	require.NoError(t, err)
	require.Equal(t, "primary source", updated.Comment)

	_, err = f.ctrl.UpdateComment(ctx, 3, "x")
	require.ErrorIs(t, err, task.ErrItemNotFound)
	require.ErrorIs(t, f.ctrl.RemoveItem(ctx, -1), task.ErrItemNotFound)

	require.NoError(t, f.ctrl.RemoveItem(ctx, 0))
	items := f.ctrl.Snapshot().Scrapbook
	require.Len(t, items, 2)
	require.Equal(t, ref.ID, items[0].ID)
	require.Equal(t, "primary source", items[0].Comment)
	require.Equal(t, note.ID, items[1].ID)

	f.ctrl.Close()
	require.Equal(t, 2, f.emitter.count(activity.TypeScrap))
	require.Equal(t, 1, f.emitter.count(activity.TypeNote))
}

func TestScrapbook_PersistRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assignment.ConvSearch)
	activate(t, f.ctrl)

	_, err := f.ctrl.AddClipping(ctx, task.Reference{Snippet: "excerpt one"})
	require.NoError(t, err)
	_, err = f.ctrl.AddWebReference(ctx, task.Reference{Title: "Source", Link: "https://example.org/a"})
	require.NoError(t, err)
	_, err = f.ctrl.AddNote(ctx, "note")
	require.NoError(t, err)
	_, err = f.ctrl.UpdateComment(ctx, 0, "keep")
	require.NoError(t, err)

	before := f.ctrl.Snapshot().Scrapbook
	f.ctrl.Close()

	reloaded := newController(t, f, assignment.ConvSearch)
	after := reloaded.Snapshot().Scrapbook
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("scrapbook mismatch after restore (-before +after):\n%s", diff)
	}

	again := newController(t, f, assignment.ConvSearch)
	if diff := cmp.Diff(after, again.Snapshot().Scrapbook); diff != "" {
		t.Fatalf("restore not idempotent (-first +second):\n%s", diff)
	}
}

func TestScrapbook_FailedPersistRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assignment.WebSearch)
	activate(t, f.ctrl)

	_, err := f.ctrl.AddNote(ctx, "kept")
	require.NoError(t, err)

	f.mem.SetErr(errors.New("quota exceeded"))
	_, err = f.ctrl.AddNote(ctx, "lost")
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.ErrorIs(t, f.ctrl.RemoveItem(ctx, 0), storage.ErrUnavailable)

	f.mem.SetErr(nil)
	items := f.ctrl.Snapshot().Scrapbook
	require.Len(t, items, 1)
	require.Equal(t, "kept", items[0].Comment)

	f.ctrl.Close()
	require.Equal(t, 1, f.emitter.count(activity.TypeNote), "no event for a rolled back note")
}

func TestScrapbook_EmissionFailureKeepsItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, assignment.WebSearch)
	f.emitter.err = errors.New("sink down")
	activate(t, f.ctrl)

	_, err := f.ctrl.AddWebReference(ctx, task.Reference{Link: "https://example.org"})
	require.NoError(t, err)
	require.Len(t, f.ctrl.Snapshot().Scrapbook, 1)
}

func TestValidateReference(t *testing.T) {
	cases := []struct {
		name string
		ref  task.Reference
		ok   bool
	}{
		{name: "clipping text", ref: task.Reference{Kind: task.KindClipping, Snippet: "x"}, ok: true},
		{name: "clipping title only", ref: task.Reference{Kind: task.KindClipping, Title: "x"}, ok: true},
		{name: "clipping empty", ref: task.Reference{Kind: task.KindClipping, Snippet: "  "}, ok: false},
		{name: "clipping bad link", ref: task.Reference{Kind: task.KindClipping, Snippet: "x", Link: "javascript:alert(1)"}, ok: false},
		{name: "webref https", ref: task.Reference{Kind: task.KindWebRef, Link: "https://a.org/x"}, ok: true},
		{name: "webref relative", ref: task.Reference{Kind: task.KindWebRef, Link: "/x"}, ok: false},
		{name: "webref ftp", ref: task.Reference{Kind: task.KindWebRef, Link: "ftp://a.org"}, ok: false},
		{name: "note via ingest", ref: task.Reference{Kind: task.KindNote, Snippet: "x"}, ok: false},
		{name: "unknown kind", ref: task.Reference{Kind: "image", Snippet: "x"}, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := task.ValidateReference(tc.ref)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, task.ErrInvalidReference)
			}
		})
	}
}
