package assignment

import (
	"math/rand/v2"
	"time"
)

// DefaultCellCap is the soft per-cell balancing target.
const DefaultCellCap = 9

// Options configures the assignment service.
type Options struct {
	StudyID string
	Topics  []Topic
	// Cap is the per-cell balancing target; once every cell reaches it the
	// choice becomes uniform over all cells.
	Cap int
	// Rand breaks ties. Defaults to a randomly seeded source.
	Rand *rand.Rand
	Now  func() time.Time
	// Recorder, when set, observes each fresh assignment.
	Recorder Recorder
}

// Recorder observes assignments.
type Recorder interface {
	ObserveAssignment(cell string)
}
