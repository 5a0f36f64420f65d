package airtable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/repository"
)

type captured struct {
	path   string
	auth   string
	ctype  string
	body   map[string]any
	status int
}

func captureServer(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.ctype = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.body)
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"error":{"type":"INVALID_PERMISSIONS"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[{"id":"rec1"}]}`))
	}))
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("secret", "app123", nil)
	c.BaseURL = srv.URL
	c.HTTPClient = srv.Client()
	return c
}

func TestSave_RecordsShape(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, &got)
	defer srv.Close()

	err := newTestClient(srv).Save(context.Background(), "Pre-Survey", map[string]any{"participant_id": "p1"}, repository.ShapeRecords)
	require.NoError(t, err)
	require.Equal(t, "/app123/Pre-Survey", got.path)
	require.Equal(t, "Bearer secret", got.auth)
	require.Equal(t, "application/json", got.ctype)
	require.Equal(t, map[string]any{
		"records": []any{map[string]any{"fields": map[string]any{"participant_id": "p1"}}},
	}, got.body)
}

func TestSave_FieldsShape(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusOK, &got)
	defer srv.Close()

	err := newTestClient(srv).Save(context.Background(), "Demographic", map[string]any{"age": "30"}, repository.ShapeFields)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"fields": map[string]any{"age": "30"}}, got.body)
}

func TestSave_ProviderError(t *testing.T) {
	var got captured
	srv := captureServer(t, http.StatusForbidden, &got)
	defer srv.Close()

	err := newTestClient(srv).Save(context.Background(), "consent", map[string]any{}, repository.ShapeRecords)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusForbidden, perr.Status)
	require.Contains(t, perr.Body, "INVALID_PERMISSIONS")
	require.False(t, perr.Retryable())
}

func TestSave_NotConfigured(t *testing.T) {
	err := NewClient("", "", nil).Save(context.Background(), "consent", nil, repository.ShapeRecords)
	require.ErrorIs(t, err, ErrNotConfigured)
}
