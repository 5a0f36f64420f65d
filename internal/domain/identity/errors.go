package identity

import "errors"

var (
	// ErrIdentityRequired indicates no participant id exists for the device.
	ErrIdentityRequired = errors.New("participant identity required")
	// ErrConsentDecided indicates consent was already recorded.
	ErrConsentDecided = errors.New("consent already decided")
	// ErrInvalidInput indicates invalid identity input.
	ErrInvalidInput = errors.New("invalid identity input")
)
