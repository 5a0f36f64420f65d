package airtable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/repository"
	"github.com/rpggio/searchstudy/internal/repository/mocks"
)

func testEvent() activity.Event {
	return activity.Event{
		ParticipantID: "p1",
		Condition:     "GMO__ConvSearch",
		TaskID:        "GMO",
		Type:          activity.TypePrompt,
		Data:          map[string]any{"prompt": "is it safe?"},
		Timestamp:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestSink(w repository.TableWriter) *LogSink {
	s := NewLogSink(w, "", nil)
	s.retryDelay = 0
	return s
}

func TestEventFields(t *testing.T) {
	fields, err := EventFields(testEvent())
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"participant_id": "p1",
		"condition":      "GMO__ConvSearch",
		"task_id":        "GMO",
		"log_type":       "prompt",
		"log_data":       `{"prompt":"is it safe?"}`,
		"timestamp":      "2025-03-01T12:00:00Z",
	}, fields)
}

func TestLogSink_DeliversOnce(t *testing.T) {
	w := new(mocks.TableWriter)
	w.On("Save", mock.Anything, DefaultLogTable, mock.Anything, repository.ShapeRecords).Return(nil).Once()

	require.NoError(t, newTestSink(w).Emit(context.Background(), testEvent()))
	w.AssertExpectations(t)
}

func TestLogSink_RetriesOnceOnServerError(t *testing.T) {
	w := new(mocks.TableWriter)
	w.On("Save", mock.Anything, DefaultLogTable, mock.Anything, repository.ShapeRecords).
		Return(&ProviderError{Status: 502}).Once()
	w.On("Save", mock.Anything, DefaultLogTable, mock.Anything, repository.ShapeRecords).
		Return(nil).Once()

	require.NoError(t, newTestSink(w).Emit(context.Background(), testEvent()))
	w.AssertNumberOfCalls(t, "Save", 2)
}

func TestLogSink_GivesUpAfterSecondFailure(t *testing.T) {
	w := new(mocks.TableWriter)
	w.On("Save", mock.Anything, DefaultLogTable, mock.Anything, repository.ShapeRecords).
		Return(errors.New("connection reset"))

	err := newTestSink(w).Emit(context.Background(), testEvent())
	require.Error(t, err)
	w.AssertNumberOfCalls(t, "Save", 2)
}

func TestLogSink_NoRetryOnClientError(t *testing.T) {
	w := new(mocks.TableWriter)
	w.On("Save", mock.Anything, DefaultLogTable, mock.Anything, repository.ShapeRecords).
		Return(&ProviderError{Status: 422})

	err := newTestSink(w).Emit(context.Background(), testEvent())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	w.AssertNumberOfCalls(t, "Save", 1)
}
