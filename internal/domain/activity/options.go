package activity

// ListOptions provides filtering options for listing journal entries.
type ListOptions struct {
	ParticipantID string
	Type          *LogType
	Limit         int
	Offset        int
}
