package task

import (
	"context"
	"sort"
	"sync"

	"github.com/rpggio/searchstudy/internal/storage"
)

// Gauge observes the number of live controllers.
type Gauge interface {
	SetActiveSessions(n int)
}

// Registry holds one live controller per participant.
type Registry struct {
	deps  Deps
	cfg   Config
	gauge Gauge

	mu   sync.Mutex
	live map[string]*Controller
}

// NewRegistry creates a registry that builds controllers from deps and cfg.
// deps.Store is ignored; each controller gets the store passed to Start.
// gauge may be nil.
func NewRegistry(deps Deps, cfg Config, gauge Gauge) *Registry {
	return &Registry{deps: deps, cfg: cfg, gauge: gauge, live: make(map[string]*Controller)}
}

// Start begins a new task attempt for the participant, closing any prior one.
func (r *Registry) Start(ctx context.Context, session Session, store storage.Store) (*Controller, error) {
	deps := r.deps
	deps.Store = store
	c, err := NewController(ctx, session, deps, r.cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prior := r.live[session.ParticipantID]
	r.live[session.ParticipantID] = c
	n := len(r.live)
	r.mu.Unlock()

	if prior != nil {
		prior.Close()
	}
	r.observe(n)
	return c, nil
}

// Get returns the live controller for a participant.
func (r *Registry) Get(participantID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.live[participantID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Release closes and forgets the participant's controller if it is still c.
func (r *Registry) Release(participantID string, c *Controller) {
	r.mu.Lock()
	if r.live[participantID] != c {
		r.mu.Unlock()
		return
	}
	delete(r.live, participantID)
	n := len(r.live)
	r.mu.Unlock()

	c.Close()
	r.observe(n)
}

// Snapshots returns the progress of every live controller ordered by
// participant id.
func (r *Registry) Snapshots() []Progress {
	r.mu.Lock()
	ctrls := make([]*Controller, 0, len(r.live))
	for _, c := range r.live {
		ctrls = append(ctrls, c)
	}
	r.mu.Unlock()

	out := make([]Progress, 0, len(ctrls))
	for _, c := range ctrls {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

// CloseAll tears down every live controller.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ctrls := r.live
	r.live = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range ctrls {
		c.Close()
	}
	r.observe(0)
}

func (r *Registry) observe(n int) {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(n)
	}
}
