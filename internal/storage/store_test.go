package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoped_IsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	a := Scoped(mem, DeviceNamespace("study", "a"))
	b := Scoped(mem, DeviceNamespace("study", "b"))

	require.NoError(t, a.Set(ctx, KeyParticipantID, "p-a"))

	v, ok, err := a.Get(ctx, KeyParticipantID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "p-a", v)

	_, ok, err = b.Get(ctx, KeyParticipantID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Remove(ctx, KeyParticipantID))
	_, ok, err = a.Get(ctx, KeyParticipantID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScoped_WrapsBackendErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	mem.SetErr(errors.New("disk full"))

	s := Scoped(mem, SharedNamespace("study"))
	_, _, err := s.Get(ctx, KeyCellCounts)
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, s.Set(ctx, KeyCellCounts, "{}"), ErrUnavailable)
	require.ErrorIs(t, s.Remove(ctx, KeyCellCounts), ErrUnavailable)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := Scoped(NewMemory(), "ns")

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var out payload
	ok, err := GetJSON(ctx, s, "k", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, SetJSON(ctx, s, "k", payload{Name: "x", Count: 2}))
	ok, err = GetJSON(ctx, s, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload{Name: "x", Count: 2}, out)

	require.NoError(t, s.Set(ctx, "k", "{not json"))
	ok, err = GetJSON(ctx, s, "k", &out)
	require.NoError(t, err)
	require.False(t, ok)
}
