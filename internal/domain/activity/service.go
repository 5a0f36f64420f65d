package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Service forwards interaction events to the log sink and journals every
// outcome locally.
type Service struct {
	sink     Sink
	repo     Repository
	recorder Recorder
	logger   *slog.Logger
}

// NewService creates a new activity service. recorder may be nil.
func NewService(sink Sink, repo Repository, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sink: sink, repo: repo, recorder: recorder, logger: logger}
}

// Emit delivers ev. The journal write happens whether or not delivery
// succeeded; the delivery error is returned to the caller.
func (s *Service) Emit(ctx context.Context, ev Event) error {
	if ev.ParticipantID == "" || ev.Data == nil || !ev.Type.Valid() {
		return ErrInvalidInput
	}
	return s.deliver(ctx, ev)
}

// Relay forwards an event posted by the browser. Unlike Emit it accepts any
// log type; an empty one becomes TypeGeneric.
func (s *Service) Relay(ctx context.Context, ev Event) error {
	if ev.ParticipantID == "" || ev.Data == nil {
		return ErrInvalidInput
	}
	if ev.Type == "" {
		ev.Type = TypeGeneric
	}
	return s.deliver(ctx, ev)
}

func (s *Service) deliver(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	sendErr := s.sink.Emit(ctx, ev)

	outcome := "delivered"
	if sendErr != nil {
		outcome = "dropped"
		s.logger.Warn("log event dropped", "participant_id", ev.ParticipantID, "log_type", ev.Type, "error", sendErr)
	}
	if s.recorder != nil {
		s.recorder.ObserveLogEvent(string(ev.Type), outcome)
	}

	if s.repo != nil {
		if err := s.repo.Log(ctx, journalEntry(ev, sendErr)); err != nil {
			s.logger.Error("journal write failed", "participant_id", ev.ParticipantID, "log_type", ev.Type, "error", err)
		}
	}

	if sendErr != nil {
		return fmt.Errorf("emitting %s: %w", ev.Type, sendErr)
	}
	return nil
}

// Recent lists journal entries with filtering.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, opts)
}

func journalEntry(ev Event, sendErr error) *Entry {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		data = []byte(fmt.Sprintf("%q", fmt.Sprint(ev.Data)))
	}
	entry := &Entry{
		ParticipantID: ev.ParticipantID,
		Condition:     ev.Condition,
		TaskID:        ev.TaskID,
		Type:          ev.Type,
		Data:          string(data),
		Delivered:     sendErr == nil,
		CreatedAt:     ev.Timestamp,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	return entry
}
