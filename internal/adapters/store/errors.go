package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. ClientError and TransientError values match these with
// errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("store unavailable")
	ErrNilBackend   = errors.New("store backend is nil")
)

// ClientError is a failure caused by the request itself. It is never
// retried.
type ClientError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *ClientError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *ClientError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TransientError is a network or server-side failure that may succeed on
// retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return ErrUnavailable.Error()
	}
	return fmt.Sprintf("%v: %v", ErrUnavailable, e.Err)
}

func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// NewClientError builds a ClientError of the given kind.
func NewClientError(kind error, format string, args ...any) error {
	return &ClientError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record of kind with id.
func NotFound(kind Kind, id string) error {
	return &ClientError{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %q", kind, id)}
}

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// FromStatus classifies an HTTP status returned by a hosted backend. 408,
// 429 and 5xx are transient; other 4xx are client errors.
func FromStatus(status int, msg string) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return &TransientError{Err: fmt.Errorf("status %d: %s", status, msg)}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &ClientError{Kind: ErrUnauthorized, Msg: msg}
	case status == http.StatusNotFound:
		return &ClientError{Kind: ErrNotFound, Msg: msg}
	case status == http.StatusConflict:
		return &ClientError{Kind: ErrConflict, Msg: msg}
	case status >= 400:
		return &ClientError{Kind: ErrValidation, Msg: fmt.Sprintf("status %d: %s", status, msg)}
	}
	return nil
}

// IsClientError reports whether err is a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
