package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/domain/survey"
	"github.com/rpggio/searchstudy/internal/testserver"
)

type participant struct {
	t      *testing.T
	ts     *testserver.TestServer
	client *http.Client
}

func (p *participant) call(method, path string, body any, out any) int {
	p.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(p.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, p.ts.Server.URL+path, reader)
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(p.t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

// fillForm answers every question with a valid value.
func fillForm(form survey.Form) survey.Responses {
	r := survey.Responses{}
	for _, q := range form.Questions {
		switch q.Type {
		case survey.AnswerLikert:
			r[q.ID] = float64(len(q.Options))
		case survey.AnswerChoice:
			r[q.ID] = q.Options[0]
		case survey.AnswerMulti:
			if len(q.Options) > 0 {
				r[q.ID] = []string{q.Options[0]}
			} else {
				r[q.ID] = []string{"other"}
			}
		case survey.AnswerNumber:
			r[q.ID] = float64(30)
		case survey.AnswerText:
			r[q.ID] = "answer"
		}
	}
	return r
}

func (p *participant) submitSurvey(kind string) {
	p.t.Helper()
	var form survey.Form
	require.Equal(p.t, http.StatusOK, p.call(http.MethodGet, "/api/surveys/"+kind, nil, &form))
	require.NotEmpty(p.t, form.Questions)

	var receipt survey.Receipt
	status := p.call(http.MethodPost, "/api/surveys/"+kind, survey.Submission{Responses: fillForm(form)}, &receipt)
	require.Equal(p.t, http.StatusOK, status)
	require.Empty(p.t, receipt.Unanswered)
}

func logTypes(rows []map[string]any) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row["log_type"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestParticipantFlow_EndToEnd(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	p := &participant{t: t, ts: ts, client: ts.NewParticipant(t)}

	var identity map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/identity", map[string]string{"recruitment_id": "PROLIFIC-1"}, &identity))
	pid := identity["participant_id"].(string)
	require.NotEmpty(t, pid)

	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/consent", map[string]bool{"granted": true}, nil))
	consent := ts.Upstream.Rows("consent")
	require.Len(t, consent, 1)
	require.Equal(t, "yes", consent[0]["consent"])
	require.Equal(t, "PROLIFIC-1", consent[0]["prolific_id"])

	var assigned map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodGet, "/api/assignment", nil, &assigned))
	require.Equal(t, "GMO", assigned["task_type"])
	system := assigned["system_type"].(string)

	p.submitSurvey("pre")
	require.Len(t, ts.Upstream.Rows("Pre-Survey"), 1)

	require.Equal(t, http.StatusCreated, p.call(http.MethodPost, "/api/task/session", nil, nil))
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/task/begin", nil, nil))
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/task/modal", map[string]bool{"open": false}, nil))

	var submitted map[string]any
	if system == "ConvSearch" {
		ts.Model.Reply(`{"text":"Studies differ [Source 1].","sources":[{"title":"WHO","url":"https://who.example/gmo"}]}`)
		require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/task/submit", map[string]string{"text": "are gmos safe"}, &submitted))
		turn := submitted["turn"].(map[string]any)
		require.Equal(t, "Studies differ [Source 1].", turn["content"])
		require.NotEmpty(t, submitted["segments"])
	} else {
		ts.Upstream.SetResults([]map[string]string{{"title": "GMO facts", "link": "https://facts.example/gmo", "snippet": "s"}})
		require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/task/submit", map[string]string{"text": "are gmos safe"}, &submitted))
		require.Len(t, submitted["results"], 1)
	}

	require.Equal(t, http.StatusCreated, p.call(http.MethodPost, "/api/task/scrapbook", map[string]string{"kind": "note", "text": "compare sources"}, nil))

	var refused map[string]any
	require.Equal(t, http.StatusConflict, p.call(http.MethodPost, "/api/task/advance", nil, &refused))
	require.Equal(t, "NOT_READY", refused["code"])

	ts.Tick(t, pid, 2)

	var advanced map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/task/advance", nil, &advanced))
	require.Equal(t, testserver.CompletionURL, advanced["completion_url"])

	types := logTypes(ts.Upstream.Rows("experiment_log"))
	require.Contains(t, types, "note")
	require.Contains(t, types, "final_scrapbook")
	require.Equal(t, "session_end", types[len(types)-1])

	var journaled int
	require.NoError(t, ts.DB.QueryRow(`SELECT COUNT(*) FROM event_log WHERE participant_id = ? AND delivered = 1`, pid).Scan(&journaled))
	require.Equal(t, len(types), journaled)

	require.Equal(t, http.StatusNotFound, p.call(http.MethodGet, "/api/task/session", nil, nil))

	p.submitSurvey("post")
	require.Len(t, ts.Upstream.Rows("post_survey"), 1)
	p.submitSurvey("demographic")
	require.Len(t, ts.Upstream.Rows("Demographic"), 1)
}

func TestParticipantFlow_DeclineStopsParticipation(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	p := &participant{t: t, ts: ts, client: ts.NewParticipant(t)}

	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/identity", map[string]string{"recruitment_id": "R2"}, nil))

	var decided map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/consent", map[string]bool{"granted": false}, &decided))
	require.Equal(t, testserver.DeclineURL, decided["redirect"])

	var blocked map[string]any
	require.Equal(t, http.StatusForbidden, p.call(http.MethodGet, "/api/assignment", nil, &blocked))
	require.Equal(t, "CONSENT_DECLINED", blocked["code"])
	require.Empty(t, ts.Upstream.Rows("Pre-Survey"))
}

func TestParticipantFlow_ReentryKeepsParticipantID(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	p := &participant{t: t, ts: ts, client: ts.NewParticipant(t)}

	var first, second map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/identity", map[string]string{"recruitment_id": "R1"}, &first))
	require.Equal(t, http.StatusOK, p.call(http.MethodPost, "/api/identity", map[string]string{"recruitment_id": "R1-corrected"}, &second))
	require.Equal(t, first["participant_id"], second["participant_id"])
	require.Equal(t, "R1-corrected", second["recruitment_id"])

	other := &participant{t: t, ts: ts, client: ts.NewParticipant(t)}
	var third map[string]any
	require.Equal(t, http.StatusOK, other.call(http.MethodPost, "/api/identity", map[string]string{"recruitment_id": "R3"}, &third))
	require.NotEqual(t, first["participant_id"], third["participant_id"])
}

func TestProxy_FetchArticle(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	p := &participant{t: t, ts: ts, client: ts.NewParticipant(t)}

	page := ts.Upstream.SetPage("gmo", `<html><head><title>GMO study</title></head><body>
<nav>Home | About</nav>
<article><h1>GMO study</h1><p>Long-term feeding trials found no adverse effects.</p></article>
<footer>Copyright</footer></body></html>`)

	var got map[string]any
	require.Equal(t, http.StatusOK, p.call(http.MethodGet, "/api/fetchArticle?url="+url.QueryEscape(page), nil, &got))
	require.Equal(t, true, got["ok"])
	require.Equal(t, "GMO study", got["title"])
	require.Contains(t, got["text"], "no adverse effects")
	require.NotContains(t, got["text"], "Copyright")

	require.Equal(t, http.StatusBadGateway, p.call(http.MethodGet, "/api/fetchArticle?url="+url.QueryEscape(ts.Upstream.URL()+"/pages/missing"), nil, &got))
	require.Equal(t, "Fetch failed: 404", got["error"])
}
