package api

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/Aygren/balendip-sub000/internal/adapters/export"
)

// InsightsHandler serves analytics and export.
type InsightsHandler struct {
	deps InsightDependencies
	errs *errorWriter
}

// HandleAnalytics handles GET /api/v1/analytics?from&to.
func (h *InsightsHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.deps.Analytics(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleExport handles POST /api/v1/export and streams the document back
// as an attachment.
func (h *InsightsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req export.Request
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	doc, err := h.deps.Export(r.Context(), req)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}
