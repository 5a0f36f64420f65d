package task

// Phase is the stage of a task attempt.
type Phase string

const (
	// PhaseIntro shows the scenario and instructions.
	PhaseIntro Phase = "intro"
	// PhaseActive runs the timed task.
	PhaseActive Phase = "active"
	// PhaseCompleted unlocks navigation onward.
	PhaseCompleted Phase = "completed"
)

// CanTransition reports whether p may move to next. Phases only move forward
// one step at a time.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseIntro:
		return next == PhaseActive
	case PhaseActive:
		return next == PhaseCompleted
	case PhaseCompleted:
		return false
	default:
		return false
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIntro, PhaseActive, PhaseCompleted:
		return true
	}
	return false
}
