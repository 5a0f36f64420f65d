package assignment

import "errors"

var (
	// ErrNoCells indicates the design has no topics configured.
	ErrNoCells = errors.New("no assignment cells configured")
	// ErrInvalidInput indicates invalid assignment input.
	ErrInvalidInput = errors.New("invalid assignment input")
)
