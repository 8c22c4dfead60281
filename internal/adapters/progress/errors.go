package progress

import "errors"

var (
	// ErrEmptyUser is returned when a user id is blank.
	ErrEmptyUser = errors.New("progress: empty user id")
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("progress: corrupt record")
)
