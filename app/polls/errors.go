package polls

import "errors"

var (
	// ErrValidation rejects malformed input before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the referenced poll does not exist or is not active.
	ErrNotFound = errors.New("poll not found")
	// ErrAlreadyAnswered rejects a duplicate submission for a student name.
	ErrAlreadyAnswered = errors.New("already answered this poll")
	// ErrInvalidOption rejects an option index outside the poll's options.
	ErrInvalidOption = errors.New("selected option out of range")
	// ErrStoreUnavailable wraps store failures. No partial state change is
	// visible; the caller may retry.
	ErrStoreUnavailable = errors.New("poll store unavailable")
)
