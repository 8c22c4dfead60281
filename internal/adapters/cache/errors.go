package cache

import "errors"

// Sentinel errors for the cache layer.
var (
	ErrUnexpectedType = errors.New("cached value has unexpected type")
	ErrNilFetcher     = errors.New("cache fetcher is nil")
)
