package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")

	dashboard, err := h.dashboardService.GetDashboard(r.Context(), identity(r), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dashboard)
}

func (h *Handler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")

	resp, err := h.dashboardService.ExportTranscript(r.Context(), identity(r), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, resp)
}

// GetGradingPolicy exposes the active scale and tiers so clients can render
// colors and thresholds without hardcoding them.
func (h *Handler) GetGradingPolicy(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.dashboardService.Policy())
}
