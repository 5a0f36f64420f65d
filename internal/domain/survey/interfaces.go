package survey

import (
	"context"

	"github.com/rpggio/searchstudy/internal/domain/assignment"
)

// AssignmentReader reads a device's stored condition.
type AssignmentReader interface {
	Get(ctx context.Context, deviceID string) (*assignment.Assignment, bool, error)
}
