package survey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKind indicates an unsupported survey kind.
	ErrUnknownKind = errors.New("unknown survey kind")
	// ErrAssignmentRequired indicates the participant has no condition yet.
	ErrAssignmentRequired = errors.New("condition assignment required")
	// ErrInvalidInput indicates a malformed answer.
	ErrInvalidInput = errors.New("invalid survey input")
	// ErrSaveFailed indicates the tabular store rejected the submission. The
	// participant may retry.
	ErrSaveFailed = errors.New("survey submission not saved")
)

// IncompleteError lists required questions left unanswered.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("unanswered questions: %s", strings.Join(e.Missing, ", "))
}

// FirstMissing returns the first unanswered question in form order.
func (e *IncompleteError) FirstMissing() string {
	if len(e.Missing) == 0 {
		return ""
	}
	return e.Missing[0]
}
