package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/storage"
)

// emitTimeout bounds a single fire-and-forget emission.
const emitTimeout = 10 * time.Second

// Controller drives one task attempt: phase, ticking, counters, the transcript
// or result list, the scrapbook and the completion gate.
type Controller struct {
	cfg     Config
	session Session

	searcher  Searcher
	generator Generator
	emitter   Emitter
	store     storage.Store
	clock     Clock
	newID     func() string
	logger    *slog.Logger

	mu           sync.Mutex
	phase        Phase
	elapsed      int
	interactions int
	transcript   []Turn
	results      []Result
	lastQuery    string
	notice       string
	scrapbook    []Item
	modalOpen    bool
	introShown   bool
	hidden       bool
	inFlight     bool
	flightDone   chan struct{}
	closed       bool

	stopTick chan struct{}
	tickDone chan struct{}

	pending sync.WaitGroup
}

// NewController creates a controller in the intro phase and restores the
// scrapbook snapshot from the device store.
func NewController(ctx context.Context, session Session, deps Deps, cfg Config) (*Controller, error) {
	if session.ParticipantID == "" || !session.Assignment.SystemType.Valid() {
		return nil, fmt.Errorf("%w: participant and condition required", ErrInvalidSession)
	}
	deps = deps.withDefaults()

	c := &Controller{
		cfg:       cfg.withDefaults(),
		session:   session,
		searcher:  deps.Searcher,
		generator: deps.Generator,
		emitter:   deps.Emitter,
		store:     deps.Store,
		clock:     deps.Clock,
		newID:     deps.NewID,
		logger:    deps.Logger.With("participant_id", session.ParticipantID),
		phase:     PhaseIntro,
	}

	if c.store != nil {
		var items []Item
		if _, err := storage.GetJSON(ctx, c.store, storage.KeyScrapbook, &items); err != nil {
			return nil, err
		}
		c.scrapbook = items
	}
	return c, nil
}

// Session returns the participant and condition the controller serves.
func (c *Controller) Session() Session {
	return c.session
}

// Begin enters the active phase and opens the intro modal. Called again after
// Back it only reopens the modal.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	switch {
	case c.phase == PhaseActive:
	case c.phase.CanTransition(PhaseActive):
		c.phase = PhaseActive
		c.startTickerLocked()
	default:
		return ErrInvalidPhase
	}
	c.introShown = false
	c.modalOpen = true
	return nil
}

// SetModal records whether a blocking modal is visible.
func (c *Controller) SetModal(open bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseActive {
		return ErrInvalidPhase
	}
	c.modalOpen = open
	return nil
}

// SetVisible records whether the task page is the active browser tab.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	c.hidden = !visible
	c.mu.Unlock()
}

// Back handles browser back navigation. During the active phase the intro view
// is shown again; phase and counters are kept and ticking pauses.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseActive {
		c.introShown = true
	}
}

// Tick advances the elapsed counter by one second when ticking is allowed. It
// reports whether the counter moved.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tickingLocked() {
		return false
	}
	c.elapsed++
	return true
}

func (c *Controller) tickingLocked() bool {
	return !c.closed && c.phase == PhaseActive && !c.modalOpen && !c.introShown && !c.hidden
}

func (c *Controller) startTickerLocked() {
	if c.stopTick != nil {
		return
	}
	t := c.clock.NewTicker(time.Second)
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stopTick, c.tickDone = stop, done

	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				c.Tick()
			}
		}
	}()
}

// detachTickerLocked signals the ticker goroutine to stop and returns a channel
// that closes once it has exited. The caller waits without holding mu.
func (c *Controller) detachTickerLocked() <-chan struct{} {
	if c.stopTick == nil {
		return nil
	}
	close(c.stopTick)
	done := c.tickDone
	c.stopTick, c.tickDone = nil, nil
	return done
}

// Submit handles a search query or chat prompt. Blank input, a closed or
// inactive session and an in-flight submission are rejected without touching
// state. Adapter failures produce a fallback result, never an error.
func (c *Controller) Submit(ctx context.Context, text string) (*SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrBlankInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return nil, ErrInvalidPhase
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrInFlight
	}

	c.inFlight = true
	c.flightDone = make(chan struct{})
	c.interactions++
	c.notice = ""

	conversational := c.session.Assignment.SystemType == assignment.ConvSearch
	var pendingID string
	if conversational {
		now := c.clock.Now().UTC()
		user := Turn{ID: c.newID(), Role: RoleUser, Content: text, CreatedAt: now}
		placeholder := Turn{ID: c.newID(), Role: RoleAssistant, Content: PendingText, Pending: true, CreatedAt: now}
		pendingID = placeholder.ID
		c.transcript = append(cloneTurns(c.transcript), user, placeholder)
		c.emitLocked(ctx, activity.TypePrompt, map[string]any{"prompt": text, "interaction": c.interactions})
	} else {
		c.lastQuery = text
		c.emitLocked(ctx, activity.TypeQuery, map[string]any{"query": text, "interaction": c.interactions})
	}
	c.mu.Unlock()

	defer c.finishFlight()

	if conversational {
		return c.converse(ctx, text, pendingID), nil
	}
	return c.search(ctx, text), nil
}

func (c *Controller) finishFlight() {
	c.mu.Lock()
	c.inFlight = false
	close(c.flightDone)
	c.flightDone = nil
	c.mu.Unlock()
}

func (c *Controller) search(ctx context.Context, query string) *SubmitResult {
	results, err := c.searcher.Search(ctx, query, c.cfg.ResultsPerQuery)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != PhaseActive {
		return &SubmitResult{Discarded: true}
	}
	if err != nil {
		c.logger.Warn("search failed", "error", err)
		c.results = nil
		c.notice = FallbackSearch
		return &SubmitResult{Fallback: true, Notice: FallbackSearch}
	}

	c.results = cloneResults(results)
	return &SubmitResult{Results: cloneResults(results)}
}

func (c *Controller) converse(ctx context.Context, text, pendingID string) *SubmitResult {
	answer, err := c.generator.Generate(ctx, ChatPrompt(text), nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != PhaseActive {
		return &SubmitResult{Discarded: true}
	}

	turn := Turn{ID: c.newID(), Role: RoleAssistant, CreatedAt: c.clock.Now().UTC()}
	fallback := false
	switch {
	case err != nil:
		c.logger.Warn("generation failed", "error", err)
		turn.Content = FallbackError
		fallback = true
	case strings.TrimSpace(answer.Text) == "":
		turn.Content = FallbackEmpty
		fallback = true
	default:
		turn.Content = answer.Text
		turn.Sources = cloneSources(answer.Sources)
	}

	c.transcript = resolvePending(c.transcript, pendingID, turn)
	c.emitLocked(ctx, activity.TypeAIResponse, map[string]any{
		"prompt":   text,
		"response": turn.Content,
		"sources":  turn.Sources,
		"fallback": fallback,
	})

	out := turn
	out.Sources = cloneSources(turn.Sources)
	return &SubmitResult{Turn: &out, Fallback: fallback}
}

// resolvePending returns a new transcript without the pending turn and with
// the resolved turn appended.
func resolvePending(transcript []Turn, pendingID string, resolved Turn) []Turn {
	out := make([]Turn, 0, len(transcript))
	for _, t := range transcript {
		if t.ID == pendingID && t.Pending {
			continue
		}
		out = append(out, t)
	}
	return append(out, resolved)
}

// ChatPrompt wraps a participant's question with the answer style instructions.
func ChatPrompt(question string) string {
	return "Please answer briefly and kindly, as if responding in a friendly and helpful manner.\n" +
		"When necessary, use clear headings, bullet points, and formatting to organize the information.\n" +
		"At the end of the response, always include 3 to 5 numbered suggestions for additional searching or follow-up questions.\n\n" +
		"User:\n" + question
}

// RecordClick logs a result or citation link the participant opened.
func (c *Controller) RecordClick(ctx context.Context, click Click) error {
	if strings.TrimSpace(click.Link) == "" {
		return ErrInvalidReference
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseActive {
		return ErrInvalidPhase
	}
	c.emitLocked(ctx, activity.TypeClick, click)
	return nil
}

// CanAdvance reports whether both completion thresholds are met.
func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canAdvanceLocked()
}

func (c *Controller) canAdvanceLocked() bool {
	return c.elapsed >= c.cfg.TimeThreshold && c.interactions >= c.cfg.InteractionThreshold
}

// Advance completes the attempt. An in-flight submission is awaited first so
// its reply lands in the transcript; if it outlasts the flush timeout Advance
// returns ErrInFlight and the attempt stays active. It then stops ticking,
// waits for earlier emissions, sends the final scrapbook and the session end
// events in that order, bounded by the flush timeout, and drops the scrapbook
// snapshot.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.awaitFlightLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}

	c.phase = PhaseCompleted
	final := c.eventLocked(activity.TypeFinalScrapbook, map[string]any{
		"scrapbook":  cloneItems(c.scrapbook),
		"transcript": cloneTurns(c.transcript),
		"results":    cloneResults(c.results),
		"last_query": c.lastQuery,
	})
	totals := c.totalsLocked()
	end := c.eventLocked(activity.TypeSessionEnd, totals)
	done := c.detachTickerLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FlushTimeout)
	defer cancel()

	c.waitPending(flushCtx)

	if c.emitter != nil {
		if err := c.emitter.Emit(flushCtx, final); err != nil {
			c.logger.Warn("final scrapbook not delivered", "error", err)
		}
		if err := c.emitter.Emit(flushCtx, end); err != nil {
			c.logger.Warn("session end not delivered", "error", err)
		}
	}

	if c.store != nil {
		if err := c.store.Remove(ctx, storage.KeyScrapbook); err != nil {
			c.logger.Warn("scrapbook snapshot not removed", "error", err)
		}
	}

	c.logger.Info("task completed", "elapsed_seconds", totals["elapsed_seconds"], "interaction_count", totals["interaction_count"])
	return nil
}

// awaitFlightLocked checks the completion gate and waits out an in-flight
// submission. c.mu is held on entry and on return.
func (c *Controller) awaitFlightLocked(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FlushTimeout)
	defer cancel()

	for {
		if c.closed {
			return ErrClosed
		}
		if !c.phase.CanTransition(PhaseCompleted) {
			return ErrInvalidPhase
		}
		if !c.canAdvanceLocked() {
			return ErrNotReady
		}
		if !c.inFlight {
			return nil
		}

		done := c.flightDone
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
		case <-waitCtx.Done():
			c.mu.Lock()
			return ErrInFlight
		}
	}
}

func (c *Controller) totalsLocked() map[string]any {
	notes := 0
	for _, it := range c.scrapbook {
		if it.Kind == KindNote {
			notes++
		}
	}
	return map[string]any{
		"elapsed_seconds":   c.elapsed,
		"interaction_count": c.interactions,
		"scrapbook_items":   len(c.scrapbook),
		"notes":             notes,
		"turns":             len(c.transcript),
	}
}

// Close tears the controller down. Ticking stops, replies that arrive later are
// discarded, and pending emissions are drained.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	done := c.detachTickerLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	c.pending.Wait()
}

// Snapshot returns a copy of the current progress.
func (c *Controller) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Progress{
		ParticipantID:    c.session.ParticipantID,
		Topic:            c.session.Assignment.Topic,
		SystemType:       c.session.Assignment.SystemType,
		Phase:            c.phase,
		ElapsedSeconds:   c.elapsed,
		InteractionCount: c.interactions,
		Transcript:       cloneTurns(c.transcript),
		Results:          cloneResults(c.results),
		LastQuery:        c.lastQuery,
		Notice:           c.notice,
		Scrapbook:        cloneItems(c.scrapbook),
		ModalOpen:        c.modalOpen,
		IntroShown:       c.introShown,
		InFlight:         c.inFlight,
		CanAdvance:       c.canAdvanceLocked(),
	}
}

func (c *Controller) eventLocked(t activity.LogType, data any) activity.Event {
	return activity.Event{
		ParticipantID: c.session.ParticipantID,
		Condition:     c.session.Assignment.Condition(),
		TaskID:        c.session.Assignment.Topic,
		Type:          t,
		Data:          data,
		Timestamp:     c.clock.Now().UTC(),
	}
}

// emitLocked sends an event without waiting for delivery. Delivery failures
// never affect local state.
func (c *Controller) emitLocked(ctx context.Context, t activity.LogType, data any) {
	if c.emitter == nil {
		return
	}
	ev := c.eventLocked(t, data)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := c.emitter.Emit(emitCtx, ev); err != nil {
			c.logger.Debug("event not delivered", "log_type", t, "error", err)
		}
	}()
}

func (c *Controller) waitPending(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func cloneTurns(in []Turn) []Turn {
	if in == nil {
		return nil
	}
	out := make([]Turn, len(in))
	for i, t := range in {
		t.Sources = cloneSources(t.Sources)
		out[i] = t
	}
	return out
}

func cloneSources(in []Source) []Source {
	if in == nil {
		return nil
	}
	out := make([]Source, len(in))
	copy(out, in)
	return out
}

func cloneResults(in []Result) []Result {
	if in == nil {
		return nil
	}
	out := make([]Result, len(in))
	copy(out, in)
	return out
}

func cloneItems(in []Item) []Item {
	if in == nil {
		return nil
	}
	out := make([]Item, len(in))
	copy(out, in)
	return out
}
