package mocks

import (
	"context"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/repository"
	"github.com/stretchr/testify/mock"
)

// EventSink is a mock for activity.Sink.
type EventSink struct {
	mock.Mock
}

func (m *EventSink) Emit(ctx context.Context, ev activity.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// EventRepository is a mock for activity.Repository.
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *EventRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// TableWriter is a mock for repository.TableWriter.
type TableWriter struct {
	mock.Mock
}

func (m *TableWriter) Save(ctx context.Context, table string, fields map[string]any, shape repository.Shape) error {
	args := m.Called(ctx, table, fields, shape)
	return args.Error(0)
}

// Searcher is a mock for task.Searcher.
type Searcher struct {
	mock.Mock
}

func (m *Searcher) Search(ctx context.Context, query string, desired int) ([]task.Result, error) {
	args := m.Called(ctx, query, desired)
	if list, ok := args.Get(0).([]task.Result); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Generator is a mock for task.Generator.
type Generator struct {
	mock.Mock
}

func (m *Generator) Generate(ctx context.Context, prompt string, sources []task.Source) (task.Answer, error) {
	args := m.Called(ctx, prompt, sources)
	if ans, ok := args.Get(0).(task.Answer); ok {
		return ans, args.Error(1)
	}
	return task.Answer{}, args.Error(1)
}
