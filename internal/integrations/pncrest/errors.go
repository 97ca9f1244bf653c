package pncrest

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is returned when PNC answers with a non-success status.
type RemoteError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("PNC responded with status %d", e.Status)
	}
	return fmt.Sprintf("PNC responded with status %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from PNC.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
