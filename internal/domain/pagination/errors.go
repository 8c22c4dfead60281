package pagination

import "errors"

// Sentinel errors for pagination.
var (
	ErrInvalidToken  = errors.New("invalid page token")
	ErrTokenMismatch = errors.New("page token does not belong to this filter")
	ErrStaleSession  = errors.New("pagination session changed while loading")
	ErrNilSource     = errors.New("pagination source is nil")
)
