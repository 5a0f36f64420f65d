package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rpggio/searchstudy/internal/storage"
)

// Service assigns participants to the least-filled cell.
type Service struct {
	backend storage.Backend
	opts    Options
	cells   []Cell
	topics  map[string]Topic
	logger  *slog.Logger

	// mu serializes the read-modify-write of the shared count table.
	mu sync.Mutex
}

// NewService creates a new assignment service.
func NewService(backend storage.Backend, opts Options, logger *slog.Logger) *Service {
	if len(opts.Topics) == 0 {
		opts.Topics = DefaultTopics()
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultCellCap
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		backend: backend,
		opts:    opts,
		topics:  make(map[string]Topic, len(opts.Topics)),
		logger:  logger,
	}
	for _, t := range opts.Topics {
		s.topics[t.Name] = t
		for _, sys := range Systems {
			s.cells = append(s.cells, Cell{Topic: t.Name, System: sys})
		}
	}
	return s
}

// Cells returns the cells of the design in a stable order.
func (s *Service) Cells() []Cell {
	out := make([]Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

// Topic looks up a configured topic by name.
func (s *Service) Topic(name string) (Topic, bool) {
	t, ok := s.topics[name]
	return t, ok
}

// Assign returns the participant's assignment, creating it on first call.
func (s *Service) Assign(ctx context.Context, deviceID, participantID string) (*Assignment, error) {
	if participantID == "" {
		return nil, ErrInvalidInput
	}
	if len(s.cells) == 0 {
		return nil, ErrNoCells
	}

	device := storage.Scoped(s.backend, storage.DeviceNamespace(s.opts.StudyID, deviceID))

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing Assignment
	ok, err := storage.GetJSON(ctx, device, storage.KeyAssignment, &existing)
	if err != nil {
		return nil, err
	}
	if ok && existing.ParticipantID == participantID {
		if _, known := s.topics[existing.Topic]; known && existing.SystemType.Valid() {
			return &existing, nil
		}
	}

	shared := s.shared()
	counts, err := s.loadCounts(ctx, shared)
	if err != nil {
		return nil, err
	}

	cell := s.pick(counts)
	topic := s.topics[cell.Topic]
	a := &Assignment{
		ParticipantID: participantID,
		Topic:         topic.Name,
		SystemType:    cell.System,
		SearchCase:    topic.SearchCase,
		SearchTask:    topic.SearchTask,
		AssignedAt:    s.opts.Now().UTC(),
	}
	if err := storage.SetJSON(ctx, device, storage.KeyAssignment, a); err != nil {
		return nil, fmt.Errorf("persisting assignment: %w", err)
	}

	// A cell is only counted once the assignment behind it is stored.
	counts[cell.Key()]++
	if err := storage.SetJSON(ctx, shared, storage.KeyCellCounts, counts); err != nil {
		if rmErr := device.Remove(ctx, storage.KeyAssignment); rmErr != nil {
			s.logger.Warn("assignment not rolled back", "participant_id", participantID, "error", rmErr)
		}
		return nil, err
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveAssignment(cell.Key())
	}
	s.logger.Info("participant assigned", "participant_id", participantID, "cell", cell.Key(), "count", counts[cell.Key()])
	return a, nil
}

// Get returns the stored assignment for a device without creating one.
func (s *Service) Get(ctx context.Context, deviceID string) (*Assignment, bool, error) {
	device := storage.Scoped(s.backend, storage.DeviceNamespace(s.opts.StudyID, deviceID))
	var a Assignment
	ok, err := storage.GetJSON(ctx, device, storage.KeyAssignment, &a)
	if err != nil || !ok {
		return nil, false, err
	}
	return &a, true, nil
}

// Counts returns the current count for every cell.
func (s *Service) Counts(ctx context.Context) ([]CellCount, error) {
	s.mu.Lock()
	counts, err := s.loadCounts(ctx, s.shared())
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]CellCount, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, CellCount{Cell: c, Key: c.Key(), Count: counts[c.Key()]})
	}
	return out, nil
}

func (s *Service) shared() storage.Store {
	return storage.Scoped(s.backend, storage.SharedNamespace(s.opts.StudyID))
}

func (s *Service) loadCounts(ctx context.Context, shared storage.Store) (map[string]int, error) {
	counts := map[string]int{}
	if _, err := storage.GetJSON(ctx, shared, storage.KeyCellCounts, &counts); err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	for _, c := range s.cells {
		if _, ok := counts[c.Key()]; !ok {
			counts[c.Key()] = 0
		}
	}
	return counts, nil
}

// pick chooses the least-filled cell under the cap, breaking ties uniformly.
// When every cell is at or over the cap it chooses uniformly over all cells.
func (s *Service) pick(counts map[string]int) Cell {
	var eligible []Cell
	for _, c := range s.cells {
		if counts[c.Key()] < s.opts.Cap {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return s.cells[s.opts.Rand.IntN(len(s.cells))]
	}

	low := counts[eligible[0].Key()]
	for _, c := range eligible[1:] {
		if n := counts[c.Key()]; n < low {
			low = n
		}
	}
	var least []Cell
	for _, c := range eligible {
		if counts[c.Key()] == low {
			least = append(least, c)
		}
	}
	return least[s.opts.Rand.IntN(len(least))]
}
