package task

import (
	"context"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/activity"
)

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, desired int) ([]Result, error)
}

// Generator produces conversational answers.
type Generator interface {
	Generate(ctx context.Context, prompt string, sources []Source) (Answer, error)
}

// Emitter delivers interaction events to the log sink.
type Emitter interface {
	Emit(ctx context.Context, ev activity.Event) error
}

// Clock supplies time and one-second tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is a stoppable periodic signal.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
