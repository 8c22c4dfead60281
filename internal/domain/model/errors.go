package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrInvalid = errors.New("invalid payload")
)
