package activity

import "context"

// Repository provides persistence operations for journal entries.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}

// Sink delivers events to the external log datastore.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// Recorder observes delivery outcomes.
type Recorder interface {
	ObserveLogEvent(logType, outcome string)
}
