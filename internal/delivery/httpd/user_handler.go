package httpd

import (
	"net/http"

	"github.com/aasim911-prog/department/internal/models"
)

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.Register(r.Context(), identity(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccessStatus(w, http.StatusCreated, user)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetProfile(r.Context(), identity(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, user)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	filter := models.StudentFilter{
		Department: r.URL.Query().Get("department"),
		Semester:   getIntQueryParam(r, "semester", 0),
		Limit:      getIntQueryParam(r, "limit", 0),
		Offset:     getIntQueryParam(r, "offset", 0),
	}

	resp, err := h.userService.ListStudents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, resp)
}
