// Package testserver runs the full study stack over in-memory SQLite with
// fake upstream providers.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/identity"
	"github.com/rpggio/searchstudy/internal/domain/survey"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/mcp"
	"github.com/rpggio/searchstudy/internal/provider/airtable"
	"github.com/rpggio/searchstudy/internal/provider/article"
	"github.com/rpggio/searchstudy/internal/provider/gemini"
	"github.com/rpggio/searchstudy/internal/provider/search"
	"github.com/rpggio/searchstudy/internal/sqlite"
	"github.com/rpggio/searchstudy/internal/transport"
)

const (
	studyID       = "study"
	CompletionURL = "https://example.org/complete"
	DeclineURL    = "https://example.org/declined"
)

// Options tune the stack under test.
type Options struct {
	// Token enables the console when non-empty.
	Token string
	// Topics defaults to a single GMO topic.
	Topics               []assignment.Topic
	TimeThreshold        int
	InteractionThreshold int
}

type TestServer struct {
	Server   *httptest.Server
	Upstream *Upstream
	DB       *sqlite.DB
	Registry *task.Registry
	Model    *ScriptedModel
	Token    string
}

// New starts the participant API and the console backed by fake providers.
func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	if len(opts.Topics) == 0 {
		opts.Topics = []assignment.Topic{{Name: "GMO", SearchCase: "case", SearchTask: "task"}}
	}
	if opts.TimeThreshold <= 0 {
		opts.TimeThreshold = 2
	}
	if opts.InteractionThreshold <= 0 {
		opts.InteractionThreshold = 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	upstream := newUpstream(t)
	model := &ScriptedModel{}

	kv := sqlite.NewKVRepository(db)
	tables := airtable.NewClient("key", "base", logger)
	tables.BaseURL = upstream.URL() + "/airtable"
	searcher := search.NewClient("key", "cx", logger)
	searcher.BaseURL = upstream.URL() + "/customsearch"

	events := activity.NewService(airtable.NewLogSink(tables, airtable.DefaultLogTable, logger), sqlite.NewEventRepository(db), nil, logger)
	assignments := assignment.NewService(kv, assignment.Options{StudyID: studyID, Topics: opts.Topics}, logger)
	generator := gemini.NewAdapter(model, nil, logger)
	registry := task.NewRegistry(task.Deps{
		Searcher:  searcher,
		Generator: generator,
		Emitter:   events,
		Clock:     manualClock{},
		Logger:    logger,
	}, task.Config{
		TimeThreshold:        opts.TimeThreshold,
		InteractionThreshold: opts.InteractionThreshold,
		FlushTimeout:         2 * time.Second,
	}, nil)

	topts := transport.Options{
		StudyID:       studyID,
		Backend:       kv,
		CompletionURL: CompletionURL,
		DeclineURL:    DeclineURL,
		Logger:        logger,
	}
	if opts.Token != "" {
		console := mcp.NewServer(mcp.Config{
			Services: mcp.Services{Assignments: assignments, Sessions: registry, Events: events},
			StudyID:  studyID,
			Logger:   logger,
		})
		topts.Console = sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return console },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
		)
		topts.ConsoleAuth = transport.AuthMiddleware(transport.StaticToken{Token: opts.Token})
	}

	server := httptest.NewServer(transport.NewServer(transport.Services{
		Identity:    identity.NewService(kv, tables, identity.Options{StudyID: studyID}, logger),
		Assignments: assignments,
		Surveys:     survey.NewService(kv, tables, assignments, survey.Options{StudyID: studyID}, logger),
		Sessions:    registry,
		Events:      events,
		Searcher:    searcher,
		Generator:   generator,
		Articles:    article.NewFetcher(article.Options{AllowPrivate: true, Timeout: 2 * time.Second}, logger),
	}, topts))

	t.Cleanup(func() {
		server.Close()
		registry.CloseAll()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		Upstream: upstream,
		DB:       db,
		Registry: registry,
		Model:    model,
		Token:    opts.Token,
	}
}

// NewParticipant returns a client that keeps its own device cookie.
func (ts *TestServer) NewParticipant(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// Tick advances the participant's task timer by n seconds.
func (ts *TestServer) Tick(t *testing.T, participantID string, n int) {
	t.Helper()
	c, err := ts.Registry.Get(participantID)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// ScriptedModel returns a queued reply for every completion.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

// Reply queues a raw model reply.
func (m *ScriptedModel) Reply(raw string) {
	m.mu.Lock()
	m.replies = append(m.replies, raw)
	m.mu.Unlock()
}

func (m *ScriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.replies) == 0 {
		return "", nil
	}
	raw := m.replies[0]
	m.replies = m.replies[1:]
	return raw, nil
}

// Prompts returns every prompt the model received.
func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Upstream fakes the search API, the tabular datastore and article sites.
type Upstream struct {
	server *httptest.Server

	mu      sync.Mutex
	rows    map[string][]map[string]any
	results []map[string]string
	pages   map[string]string
}

func newUpstream(t *testing.T) *Upstream {
	u := &Upstream{rows: map[string][]map[string]any{}, pages: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/customsearch", u.handleSearch)
	mux.HandleFunc("/airtable/", u.handleAirtable)
	mux.HandleFunc("/pages/", u.handlePage)
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

// URL is the base URL of the fake upstream.
func (u *Upstream) URL() string { return u.server.URL }

// SetResults sets the hits every search returns.
func (u *Upstream) SetResults(items []map[string]string) {
	u.mu.Lock()
	u.results = items
	u.mu.Unlock()
}

// SetPage serves html at /pages/name.
func (u *Upstream) SetPage(name, html string) string {
	u.mu.Lock()
	u.pages[name] = html
	u.mu.Unlock()
	return u.server.URL + "/pages/" + name
}

// Rows returns the records written to table.
func (u *Upstream) Rows(table string) []map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]map[string]any(nil), u.rows[table]...)
}

func (u *Upstream) handleSearch(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	items := u.results
	u.mu.Unlock()
	if r.URL.Query().Get("start") != "1" {
		items = nil
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func (u *Upstream) handleAirtable(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/airtable/"), "/")
	if len(parts) != 2 || r.Header.Get("Authorization") != "Bearer key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	u.mu.Lock()
	table := parts[1]
	if body.Fields != nil {
		u.rows[table] = append(u.rows[table], body.Fields)
	}
	for _, rec := range body.Records {
		u.rows[table] = append(u.rows[table], rec.Fields)
	}
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"records":[{"id":"rec1"}]}`))
}

func (u *Upstream) handlePage(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	html, ok := u.pages[strings.TrimPrefix(r.URL.Path, "/pages/")]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// manualClock never ticks on its own; tests drive the timer with Tick.
type manualClock struct{}

func (manualClock) Now() time.Time { return time.Now() }

func (manualClock) NewTicker(time.Duration) task.Ticker { return idleTicker{} }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}
