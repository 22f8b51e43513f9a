package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aasim911-prog/department/internal/models"
)

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject, err := h.subjectService.CreateSubject(r.Context(), identity(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, subject)
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	filter := models.SubjectFilter{
		Department: r.URL.Query().Get("department"),
		Semester:   getIntQueryParam(r, "semester", 0),
	}

	subjects, err := h.subjectService.ListSubjects(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, subjects)
}

func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Subject ID is required")
		return
	}

	if err := h.subjectService.DeleteSubject(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"id": id})
}
