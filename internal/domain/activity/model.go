package activity

import "time"

// LogType enumerates the kinds of interaction events sent to the log sink.
type LogType string

const (
	TypeQuery          LogType = "query"
	TypePrompt         LogType = "prompt"
	TypeAIResponse     LogType = "ai_response"
	TypeClick          LogType = "click"
	TypeScrap          LogType = "scrap"
	TypeNote           LogType = "note"
	TypeFinalScrapbook LogType = "final_scrapbook"
	TypeSessionEnd     LogType = "session_end"

	// TypeGeneric labels relayed browser events that carry no type.
	TypeGeneric LogType = "generic"
)

// Valid reports whether t is one of the known log types.
func (t LogType) Valid() bool {
	switch t {
	case TypeQuery, TypePrompt, TypeAIResponse, TypeClick, TypeScrap, TypeNote, TypeFinalScrapbook, TypeSessionEnd:
		return true
	}
	return false
}

// Event is one interaction record in the log sink wire shape.
type Event struct {
	ParticipantID string    `json:"participant_id"`
	Condition     string    `json:"condition"`
	TaskID        string    `json:"task_id"`
	Type          LogType   `json:"log_type"`
	Data          any       `json:"log_data"`
	Timestamp     time.Time `json:"timestamp"`
}

// Entry is the local journal copy of an emitted event
type Entry struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Condition     string    `json:"condition"`
	TaskID        string    `json:"task_id"`
	Type          LogType   `json:"log_type"`
	Data          string    `json:"log_data"` // JSON string
	Delivered     bool      `json:"delivered"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
