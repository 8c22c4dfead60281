package api

import (
	"net/http"
	"strconv"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// SpheresHandler serves /api/v1/spheres.
type SpheresHandler struct {
	deps SphereDependencies
	errs *errorWriter
}

type spheresResponse struct {
	Spheres []model.LifeSphere `json:"spheres"`
	Seeded  *bool              `json:"seeded,omitempty"`
}

// HandleList handles GET /api/v1/spheres.
func (h *SpheresHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	spheres, err := h.deps.ListSpheres(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spheresResponse{Spheres: nonNil(spheres)})
}

// HandleCreate handles POST /api/v1/spheres.
func (h *SpheresHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.SphereInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	sp, err := h.deps.CreateSphere(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// HandleSeed handles POST /api/v1/spheres/seed.
func (h *SpheresHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	spheres, seeded, err := h.deps.SeedDefaultSpheres(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	status := http.StatusOK
	if seeded {
		status = http.StatusCreated
	}
	writeJSON(w, status, spheresResponse{Spheres: nonNil(spheres), Seeded: &seeded})
}

// HandleUpdate handles PATCH /api/v1/spheres/{id}.
func (h *SpheresHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.SpherePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.errs.write(w, r, err)
		return
	}
	sp, err := h.deps.UpdateSphere(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// HandleDelete handles DELETE /api/v1/spheres/{id}?force=true.
func (h *SpheresHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errs.write(w, r, WrapKind(ErrBadRequest, invalidParam("force", raw)))
			return
		}
		force = v
	}
	if err := h.deps.DeleteSphere(r.Context(), r.PathValue("id"), force); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(s []model.LifeSphere) []model.LifeSphere {
	if s == nil {
		return []model.LifeSphere{}
	}
	return s
}
