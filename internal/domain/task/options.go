package task

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/searchstudy/internal/storage"
)

const (
	// DefaultTimeThreshold is the active time required before advancing.
	DefaultTimeThreshold = 240
	// DefaultInteractionThreshold is the number of valid submissions required.
	DefaultInteractionThreshold = 5
	// DefaultResultsPerQuery is the number of search results requested.
	DefaultResultsPerQuery = 10
	// DefaultFlushTimeout bounds the completion flush.
	DefaultFlushTimeout = 5 * time.Second
)

// Fallback texts shown in place of a failed or empty adapter reply.
const (
	FallbackEmpty  = "No response generated."
	FallbackError  = "An error occurred while generating the response."
	FallbackSearch = "Search failed. Please try again."
	PendingText    = "Generating response..."
)

// Config holds the gating thresholds and timing of a task attempt.
type Config struct {
	TimeThreshold        int
	InteractionThreshold int
	ResultsPerQuery      int
	FlushTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.TimeThreshold <= 0 {
		c.TimeThreshold = DefaultTimeThreshold
	}
	if c.InteractionThreshold <= 0 {
		c.InteractionThreshold = DefaultInteractionThreshold
	}
	if c.ResultsPerQuery <= 0 {
		c.ResultsPerQuery = DefaultResultsPerQuery
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	return c
}

// Deps are the collaborators of a controller.
type Deps struct {
	Searcher  Searcher
	Generator Generator
	Emitter   Emitter
	// Store holds the scrapbook snapshot for the participant's device.
	Store  storage.Store
	Clock  Clock
	NewID  func() string
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.New().String() }
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}
