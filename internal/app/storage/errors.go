package storage

import "errors"

// ErrNotFound is wrapped by every store when the requested record does not
// exist, so callers can map it without knowing the backend.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
