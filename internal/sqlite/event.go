package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/activity"
)

// EventRepository implements activity.Repository for SQLite
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Log inserts a new journal entry
func (r *EventRepository) Log(ctx context.Context, entry *activity.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO event_log (
			participant_id, condition, task_id, log_type,
			log_data, delivered, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.ParticipantID,
		entry.Condition,
		entry.TaskID,
		entry.Type,
		entry.Data,
		entry.Delivered,
		errText,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	entry.CreatedAt = createdAt

	return nil
}

// List returns journal entries matching the given filters, newest first
func (r *EventRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `
		SELECT
			id, participant_id, condition, task_id, log_type,
			log_data, delivered, error, created_at
		FROM event_log
	`

	var args []any
	var conditions []string

	if opts.ParticipantID != "" {
		conditions = append(conditions, "participant_id = ?")
		args = append(args, opts.ParticipantID)
	}
	if opts.Type != nil {
		conditions = append(conditions, "log_type = ?")
		args = append(args, *opts.Type)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var entry activity.Entry
		var errText sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.ParticipantID,
			&entry.Condition,
			&entry.TaskID,
			&entry.Type,
			&entry.Data,
			&entry.Delivered,
			&errText,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event entry: %w", err)
		}
		if errText.Valid {
			entry.Error = errText.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return entries, nil
}
