package export

import "errors"

var (
	// ErrUnknownFormat is returned for formats other than csv and pdf.
	ErrUnknownFormat = errors.New("export: unknown format")
	// ErrInvalidRange is returned when the date range is malformed or inverted.
	ErrInvalidRange = errors.New("export: invalid date range")
)
