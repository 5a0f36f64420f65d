package survey

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies a survey page.
type Kind string

const (
	KindPre         Kind = "pre"
	KindPost        Kind = "post"
	KindDemographic Kind = "demographic"
)

// Valid reports whether k is a known survey kind.
func (k Kind) Valid() bool {
	return k == KindPre || k == KindPost || k == KindDemographic
}

// AnswerType describes how a question is answered.
type AnswerType string

const (
	AnswerLikert AnswerType = "likert"
	AnswerChoice AnswerType = "choice"
	AnswerMulti  AnswerType = "multi"
	AnswerText   AnswerType = "text"
	AnswerNumber AnswerType = "number"
)

// Condition makes a question required only when another answer is one of
// Values.
type Condition struct {
	QuestionID string   `json:"question_id"`
	Values     []string `json:"values"`
}

// Question is one survey item.
type Question struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Section  string     `json:"section"`
	Type     AnswerType `json:"type"`
	Options  []string   `json:"options,omitempty"`
	Required bool       `json:"required"`
	// RequiredWhen narrows Required to responses matching the condition.
	RequiredWhen *Condition `json:"required_when,omitempty"`
}

// Form is the full question set of a survey page.
type Form struct {
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Sections  []string   `json:"sections"`
	Questions []Question `json:"questions"`
}

// Responses maps question ids to answers as decoded from JSON.
type Responses map[string]any

// Submission is a survey page submitted by a participant.
type Submission struct {
	Responses Responses `json:"responses"`
	// AllowIncomplete records the participant's choice to continue with
	// unanswered questions.
	AllowIncomplete bool `json:"allow_incomplete"`
}

// Receipt reports a stored submission.
type Receipt struct {
	Kind       Kind     `json:"kind"`
	Table      string   `json:"table"`
	Unanswered []string `json:"unanswered,omitempty"`
}

// answered reports whether v counts as an answer.
func answered(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	default:
		return true
	}
}

// required reports whether q must be answered given the other responses.
func (q Question) required(r Responses) bool {
	if !q.Required {
		return false
	}
	if q.RequiredWhen == nil {
		return true
	}
	v, _ := r[q.RequiredWhen.QuestionID].(string)
	return slices.Contains(q.RequiredWhen.Values, v)
}

// likertValue converts a decoded JSON answer into a scale point.
func likertValue(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		n, err := strconv.Atoi(x.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

// numberValue converts a decoded JSON answer into a number.
func numberValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// stringList converts a decoded JSON answer into a list of strings.
func stringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
