package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	service "github.com/Aygren/balendip-sub000/internal/app"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
	"github.com/Aygren/balendip-sub000/internal/domain/pagination"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid bearer token")
)

// WrapKind tags err with kind so errors.Is matches both.
func WrapKind(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// classify maps an error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, store.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, onboarding.ErrPersistence):
		return http.StatusBadGateway, "persistence_failed"
	case errors.Is(err, store.ErrValidation), errors.Is(err, model.ErrInvalid),
		errors.Is(err, onboarding.ErrUnknownSphere):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, pagination.ErrInvalidToken):
		return http.StatusBadRequest, "invalid_page_token"
	case errors.Is(err, pagination.ErrTokenMismatch):
		return http.StatusConflict, "page_token_mismatch"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUnknownAction):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, onboarding.ErrNoSpheresSelected), errors.Is(err, onboarding.ErrAtFirstStep),
		errors.Is(err, onboarding.ErrAlreadyCompleted):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

type errorWriter struct {
	logger logger.Logger
}

// write sends err as a JSON error body. Server-side failures are logged and
// their detail withheld from the client.
func (e *errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		e.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
