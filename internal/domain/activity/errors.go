package activity

import "errors"

var (
	// ErrInvalidInput indicates an event is missing required fields.
	ErrInvalidInput = errors.New("invalid log event")
)
