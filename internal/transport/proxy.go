package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/provider/article"
	"github.com/rpggio/searchstudy/internal/provider/search"
)

// The browser-facing proxy endpoints keep the wire shapes the task pages were
// written against, so their errors do not use APIError.

type searchResponse struct {
	Query         string        `json:"query"`
	TotalReturned int           `json:"totalReturned"`
	Items         []task.Result `json:"items"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing q"})
		return
	}
	desired := s.opts.ResultsPerQuery
	raw := r.URL.Query().Get("requestedTotal")
	if raw == "" {
		raw = r.URL.Query().Get("num")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		desired = n
	}

	items, err := s.svc.Searcher.Search(r.Context(), q, desired)
	if err != nil {
		var upstream *search.UpstreamError
		switch {
		case errors.As(err, &upstream):
			writeJSON(w, upstream.Status, map[string]string{"error": "Google CSE error", "details": upstream.Body})
		case errors.Is(err, search.ErrNotConfigured):
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Missing GOOGLE_CSE_API_KEY or GOOGLE_CSE_CX"})
		default:
			s.logger.Error("search failed", "query", q, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Search failed"})
		}
		return
	}
	if items == nil {
		items = []task.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, TotalReturned: len(items), Items: items})
}

// wireSource is a citation as the chat page expects it.
type wireSource struct {
	ID      int    `json:"id,omitempty"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type llmRequest struct {
	Prompt  string       `json:"prompt"`
	Sources []wireSource `json:"sources"`
}

type llmResponse struct {
	Text    string       `json:"text"`
	Sources []wireSource `json:"sources"`
}

func (s *Server) handleLLM(w http.ResponseWriter, r *http.Request) {
	var req llmRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusOK, llmResponse{Text: "Error: Prompt is empty", Sources: []wireSource{}})
		return
	}

	supplied := make([]task.Source, 0, len(req.Sources))
	for i, src := range req.Sources {
		link := src.Link
		if link == "" {
			link = src.URL
		}
		supplied = append(supplied, task.Source{ID: i + 1, Title: src.Title, URL: link, Snippet: src.Snippet})
	}

	answer, err := s.svc.Generator.Generate(r.Context(), req.Prompt, supplied)
	if err != nil {
		s.logger.Warn("generation failed", "error", err)
		writeJSON(w, http.StatusOK, llmResponse{Text: "Error generated: " + err.Error(), Sources: []wireSource{}})
		return
	}

	out := make([]wireSource, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		out = append(out, wireSource{ID: src.ID, Title: src.Title, Link: src.URL, Snippet: src.Snippet})
	}
	writeJSON(w, http.StatusOK, llmResponse{Text: answer.Text, Sources: out})
}

type articleResponse struct {
	OK bool `json:"ok"`
	*article.Article
	Error       string `json:"error,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

func (s *Server) handleFetchArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Articles.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err == nil {
		writeJSON(w, http.StatusOK, articleResponse{OK: true, Article: a})
		return
	}

	var (
		upstream *article.UpstreamError
		ctype    *article.ContentTypeError
	)
	switch {
	case errors.Is(err, article.ErrInvalidURL), errors.Is(err, article.ErrBlockedHost):
		writeJSON(w, http.StatusBadRequest, articleResponse{Error: "Invalid URL"})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, articleResponse{Error: "Fetch failed: " + strconv.Itoa(upstream.Status)})
	case errors.As(err, &ctype):
		writeJSON(w, http.StatusUnsupportedMediaType, articleResponse{Error: "Not an HTML page", ContentType: ctype.ContentType})
	case errors.Is(err, article.ErrNoContent):
		writeJSON(w, http.StatusUnprocessableEntity, articleResponse{Error: "Failed to extract article text"})
	case errors.Is(err, article.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, articleResponse{Error: "Timeout fetching page"})
	default:
		s.logger.Error("article fetch failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, articleResponse{Error: "Unexpected error"})
	}
}

type experimentLogRequest struct {
	ParticipantID string          `json:"participant_id"`
	Condition     string          `json:"condition"`
	TaskID        string          `json:"task_id"`
	LogType       string          `json:"log_type"`
	LogData       json.RawMessage `json:"log_data"`
	Timestamp     string          `json:"timestamp"`
}

type experimentLogResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleExperimentLog(w http.ResponseWriter, r *http.Request) {
	var req experimentLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, experimentLogResponse{Error: "invalid JSON body"})
		return
	}

	if req.ParticipantID == "" {
		if p, err := s.svc.Identity.Participant(r.Context(), s.deviceID(r)); err == nil {
			req.ParticipantID = p.ID
		}
	}

	ev := activity.Event{
		ParticipantID: req.ParticipantID,
		Condition:     req.Condition,
		TaskID:        req.TaskID,
		Type:          activity.LogType(req.LogType),
	}
	if len(req.LogData) > 0 && string(req.LogData) != "null" {
		var data any
		if err := json.Unmarshal(req.LogData, &data); err == nil {
			ev.Data = data
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, req.Timestamp); err == nil {
		ev.Timestamp = ts.UTC()
	}

	if err := s.svc.Events.Relay(r.Context(), ev); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, activity.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, experimentLogResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, experimentLogResponse{Success: true})
}
