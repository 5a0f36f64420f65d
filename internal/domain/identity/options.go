package identity

// Options configures the identity service.
type Options struct {
	// StudyID prefixes every device namespace.
	StudyID string
	// ConsentTable receives consent decisions.
	ConsentTable string
	// NewID generates participant ids. Defaults to a random UUID.
	NewID func() string
}
