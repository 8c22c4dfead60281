package api

import (
	"errors"
	"net/http"

	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
)

// OnboardingHandler serves /api/v1/onboarding.
type OnboardingHandler struct {
	deps OnboardingDependencies
	errs *errorWriter
}

// persistenceResponse reports a completion that stuck locally while the
// sphere write failed.
type persistenceResponse struct {
	errorResponse
	Progress onboarding.Progress `json:"progress"`
}

// HandleGet handles GET /api/v1/onboarding.
func (h *OnboardingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Onboarding(r.Context())
	h.respond(w, r, p, err)
}

// HandleUpdate handles PUT /api/v1/onboarding.
func (h *OnboardingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var u onboarding.Update
	if err := decodeJSON(w, r, &u); err != nil {
		h.errs.write(w, r, err)
		return
	}
	p, err := h.deps.UpdateOnboarding(r.Context(), u)
	h.respond(w, r, p, err)
}

// HandleAction handles POST /api/v1/onboarding/{action}.
func (h *OnboardingHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.OnboardingAction(r.Context(), r.PathValue("action"))
	h.respond(w, r, p, err)
}

func (h *OnboardingHandler) respond(w http.ResponseWriter, r *http.Request, p onboarding.Progress, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, onboarding.ErrPersistence):
		status, code := classify(err)
		writeJSON(w, status, persistenceResponse{
			errorResponse: errorResponse{Code: code, Message: err.Error()},
			Progress:      p,
		})
	default:
		h.errs.write(w, r, err)
	}
}
