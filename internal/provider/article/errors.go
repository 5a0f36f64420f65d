package article

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned for missing, relative or non-http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrBlockedHost is returned for local and private network targets.
	ErrBlockedHost = errors.New("host not allowed")

	// ErrNoContent is returned when no readable text could be extracted.
	ErrNoContent = errors.New("failed to extract article text")

	// ErrTimeout is returned when the page did not arrive in time.
	ErrTimeout = errors.New("timeout fetching page")
)

// UpstreamError reports a non-OK status from the fetched site.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetch failed: %d", e.Status)
}

// ContentTypeError reports a response that is not an HTML page.
type ContentTypeError struct {
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return "not an HTML page"
}
