package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aasim911-prog/department/internal/models"
)

func (h *Handler) UploadMarks(w http.ResponseWriter, r *http.Request) {
	var req models.UploadMarksRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.markService.UploadMarks(r.Context(), identity(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeSuccessStatus(w, status, resp)
}

func (h *Handler) GetStudentMarks(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	marks, err := h.markService.GetStudentMarks(r.Context(), identity(r), studentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, marks)
}

func (h *Handler) GetSubjectMarks(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")

	marks, err := h.markService.GetSubjectMarks(r.Context(), subjectID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, marks)
}
