package task

import "errors"

var (
	// ErrBlankInput indicates an empty or whitespace-only submission.
	ErrBlankInput = errors.New("submission is blank")
	// ErrInFlight indicates a submission is already pending.
	ErrInFlight = errors.New("submission already in flight")
	// ErrInvalidPhase indicates the operation is not allowed in the current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
	// ErrNotReady indicates the completion thresholds are not met yet.
	ErrNotReady = errors.New("completion requirements not met")
	// ErrClosed indicates the controller was torn down.
	ErrClosed = errors.New("task session closed")
	// ErrItemNotFound indicates a scrapbook index out of range.
	ErrItemNotFound = errors.New("scrapbook item not found")
	// ErrInvalidReference indicates an ingested reference failed validation.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInvalidSession indicates a controller was requested without a participant or condition.
	ErrInvalidSession = errors.New("invalid task session")
	// ErrSessionNotFound indicates no live task session exists for a participant.
	ErrSessionNotFound = errors.New("task session not found")
)
