package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/repository"
)

// DefaultLogTable receives interaction events.
const DefaultLogTable = "experiment_log"

// LogSink delivers interaction events to the log table, retrying once on
// network failure or a server-side error.
type LogSink struct {
	writer     repository.TableWriter
	table      string
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ activity.Sink = (*LogSink)(nil)

// NewLogSink creates a sink writing to table.
func NewLogSink(writer repository.TableWriter, table string, logger *slog.Logger) *LogSink {
	if table == "" {
		table = DefaultLogTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{writer: writer, table: table, retryDelay: 500 * time.Millisecond, logger: logger}
}

// Emit posts ev as one record.
func (s *LogSink) Emit(ctx context.Context, ev activity.Event) error {
	fields, err := EventFields(ev)
	if err != nil {
		return err
	}

	err = s.writer.Save(ctx, s.table, fields, repository.ShapeRecords)
	if err == nil || !retryable(err) {
		return err
	}

	s.logger.Debug("retrying log event", "log_type", ev.Type, "error", err)
	select {
	case <-ctx.Done():
		return err
	case <-time.After(s.retryDelay):
	}
	return s.writer.Save(ctx, s.table, fields, repository.ShapeRecords)
}

// EventFields maps an event to the log table columns.
func EventFields(ev activity.Event) (map[string]any, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode log_data: %w", err)
	}
	logType := string(ev.Type)
	if logType == "" {
		logType = "generic"
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return map[string]any{
		"participant_id": ev.ParticipantID,
		"condition":      ev.Condition,
		"task_id":        ev.TaskID,
		"log_type":       logType,
		"log_data":       string(data),
		"timestamp":      ts.UTC().Format(time.RFC3339Nano),
	}, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, repository.ErrInvalidInput) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Status >= 500
	}
	return true
}
