package task

import (
	"time"

	"github.com/rpggio/searchstudy/internal/domain/assignment"
)

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a numbered citation target returned with a generated answer.
type Source struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Turn is one entry of the conversational transcript. A pending turn is a
// placeholder for an assistant answer that has not arrived yet.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Pending   bool      `json:"pending,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink,omitempty"`
}

// Answer is the generative adapter's reply.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// ItemKind distinguishes scrapbook entries.
type ItemKind string

const (
	KindClipping ItemKind = "clipping"
	KindWebRef   ItemKind = "webref"
	KindNote     ItemKind = "note"
)

// Item is one scrapbook entry.
type Item struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Snippet   string    `json:"snippet,omitempty"`
	Link      string    `json:"link,omitempty"`
	Comment   string    `json:"comment"`
	SourceTag string    `json:"source_tag,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Reference is an externally supplied item to add to the scrapbook, such as a
// dragged search result or a chat excerpt.
type Reference struct {
	Kind      ItemKind `json:"kind"`
	Title     string   `json:"title"`
	Snippet   string   `json:"snippet"`
	Link      string   `json:"link"`
	SourceTag string   `json:"source_tag"`
}

// Click describes a result or citation link the participant opened.
type Click struct {
	Link     string `json:"link"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
	Origin   string `json:"origin,omitempty"`
}

// Session identifies the participant and condition a controller serves.
type Session struct {
	ParticipantID string
	Assignment    assignment.Assignment
}

// Progress is a point-in-time view of a task attempt.
type Progress struct {
	ParticipantID    string                `json:"participant_id"`
	Topic            string                `json:"task_id"`
	SystemType       assignment.SystemType `json:"system_type"`
	Phase            Phase                 `json:"phase"`
	ElapsedSeconds   int                   `json:"elapsed_seconds"`
	InteractionCount int                   `json:"interaction_count"`
	Transcript       []Turn                `json:"transcript"`
	Results          []Result              `json:"results"`
	LastQuery        string                `json:"last_query,omitempty"`
	Notice           string                `json:"notice,omitempty"`
	Scrapbook        []Item                `json:"scrapbook"`
	ModalOpen        bool                  `json:"modal_open"`
	IntroShown       bool                  `json:"intro_shown"`
	InFlight         bool                  `json:"in_flight"`
	CanAdvance       bool                  `json:"can_advance"`
}

// SubmitResult reports the outcome of an accepted submission.
type SubmitResult struct {
	Results []Result `json:"results,omitempty"`
	Turn    *Turn    `json:"turn,omitempty"`
	// Fallback is set when the adapter failed and a fallback was shown.
	Fallback bool   `json:"fallback,omitempty"`
	Notice   string `json:"notice,omitempty"`
	// Discarded is set when the session ended before the adapter replied.
	Discarded bool `json:"discarded,omitempty"`
}
