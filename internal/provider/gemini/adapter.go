package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/task"
)

// Recorder observes provider calls.
type Recorder interface {
	ObserveProviderRequest(provider, outcome string, d time.Duration)
}

// Adapter implements task.Generator on top of a Model.
type Adapter struct {
	model    Model
	recorder Recorder
	logger   *slog.Logger
}

var _ task.Generator = (*Adapter)(nil)

// NewAdapter creates a generator. recorder may be nil.
func NewAdapter(model Model, recorder Recorder, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{model: model, recorder: recorder, logger: logger}
}

// Generate asks the model for a cited answer. Transport failures are returned;
// malformed model output is not an error and degrades to uncited raw text.
func (a *Adapter) Generate(ctx context.Context, prompt string, sources []task.Source) (task.Answer, error) {
	if a.model == nil {
		return task.Answer{}, ErrNotConfigured
	}
	start := time.Now()
	raw, err := a.model.Complete(ctx, BuildPrompt(prompt, sources))
	if err != nil {
		a.observe("error", start)
		return task.Answer{}, err
	}
	a.observe("ok", start)

	answer, ok := ParseAnswer(raw)
	if !ok {
		a.logger.Debug("model output not JSON, using raw text", "bytes", len(raw))
	}
	if len(sources) > 0 && len(answer.Sources) == 0 {
		answer.Sources = append([]task.Source(nil), sources...)
	}
	return answer, nil
}

func (a *Adapter) observe(outcome string, start time.Time) {
	if a.recorder != nil {
		a.recorder.ObserveProviderRequest("gemini", outcome, time.Since(start))
	}
}

// BuildPrompt wraps a user prompt with the JSON answer contract. When sources
// are supplied the model may only cite those.
func BuildPrompt(prompt string, sources []task.Source) string {
	var b strings.Builder
	b.WriteString("You are a helpful research assistant.\n")
	fmt.Fprintf(&b, "User Query: %q\n\n", prompt)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Answer the query comprehensively.\n")
	if len(sources) > 0 {
		b.WriteString("2. Use only the numbered sources below.\n")
		b.WriteString("3. Cite them in your text as [Source k], using only the numbers listed.\n")
	} else {
		b.WriteString("2. Generate a list of legitimate-looking sources relevant to the answer.\n")
		b.WriteString("3. Cite these sources in your text using the format [Source 1], [Source 2], etc.\n")
	}
	b.WriteString("4. Return ONLY a valid JSON object.\n\n")

	if len(sources) > 0 {
		b.WriteString("Sources:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "[Source %d] %s (%s)", s.ID, s.Title, s.URL)
			if s.Snippet != "" {
				fmt.Fprintf(&b, ": %s", s.Snippet)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Response Format (JSON):\n")
	b.WriteString(`{"text": "Your answer text here with citations like [Source 1]...", `)
	b.WriteString(`"sources": [{"title": "Title of Source 1", "link": "https://example.com", "snippet": "Description of source 1..."}]}`)
	b.WriteString("\n")
	return b.String()
}

type rawSource struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type rawAnswer struct {
	Text      *string     `json:"text"`
	Answer    *string     `json:"answer"`
	Sources   []rawSource `json:"sources"`
	Citations []rawSource `json:"citations"`
}

// ParseAnswer decodes model output. It strips code fences and accepts either
// text or answer for the body and sources or citations for the list. On any
// failure it returns the raw text without sources and false.
func ParseAnswer(raw string) (task.Answer, bool) {
	clean := stripFences(raw)

	var r rawAnswer
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return task.Answer{Text: raw, Sources: []task.Source{}}, false
	}

	text := raw
	switch {
	case r.Text != nil && *r.Text != "":
		text = *r.Text
	case r.Answer != nil && *r.Answer != "":
		text = *r.Answer
	}

	list := r.Sources
	if len(list) == 0 {
		list = r.Citations
	}
	sources := make([]task.Source, 0, len(list))
	for i, s := range list {
		link := s.Link
		if link == "" {
			link = s.URL
		}
		sources = append(sources, task.Source{
			ID:      i + 1,
			Title:   s.Title,
			URL:     link,
			Snippet: s.Snippet,
		})
	}
	return task.Answer{Text: text, Sources: sources}, true
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
