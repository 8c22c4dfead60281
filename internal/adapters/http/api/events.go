package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 255
)

// EventsHandler serves /api/v1/events.
type EventsHandler struct {
	deps EventDependencies
	errs *errorWriter
}

type listEventsResponse struct {
	Events        []model.Event `json:"events"`
	NextPageToken *string       `json:"next_page_token"`
}

// HandleList handles GET /api/v1/events.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Search:  q.Get("search"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Emotion: model.Emotion(q.Get("emotion")),
		Spheres: splitList(q["spheres"]),
	}
	size := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errs.write(w, r, WrapKind(ErrBadRequest, invalidParam("page_size", raw)))
			return
		}
		size = n
	}

	page, err := h.deps.ListEvents(r.Context(), filter, q.Get("page_token"), size)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	resp := listEventsResponse{Events: page.Events}
	if page.Next != "" {
		next := page.Next
		resp.NextPageToken = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /api/v1/events. A request carrying an
// Idempotency-Key that already succeeded gets the original event back
// with 200 instead of a second copy.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > maxIdempotencyKey {
		h.errs.write(w, r, WrapKind(ErrBadRequest, invalidParam(idempotencyHeader, key[:16]+"...")))
		return
	}
	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.errs.write(w, r, err)
		return
	}
	e, replayed, err := h.deps.CreateEventOnce(r.Context(), key, in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, e)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleGet handles GET /api/v1/events/{id}.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleUpdate handles PATCH /api/v1/events/{id}.
func (h *EventsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.errs.write(w, r, err)
		return
	}
	e, err := h.deps.UpdateEvent(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleDelete handles DELETE /api/v1/events/{id}.
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// splitList accepts both repeated parameters and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " " + strconv.Quote(e.value)
}

func invalidParam(name, value string) error {
	return &paramError{name: name, value: value}
}
