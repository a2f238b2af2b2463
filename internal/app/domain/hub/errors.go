package hub

import "errors"

// Engine operations classify failures into this vocabulary so callers can
// react without parsing messages. Wrap with fmt.Errorf("%w: ...") and check
// with errors.Is.
var (
	// ErrUnauthorized marks a caller lacking the role or ownership an
	// operation requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState marks an operation applied to a record whose status
	// does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrConfigNotFound marks a missing fee schedule or system config that
	// an operation needs before moving value.
	ErrConfigNotFound = errors.New("configuration not found")
)
