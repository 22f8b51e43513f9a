package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/middleware"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RateLimit struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type Handler struct {
	userService      service.UserService
	subjectService   service.SubjectService
	markService      service.MarkService
	dashboardService service.DashboardService
	auth             *middleware.Authenticator
	db               Pinger
	metrics          http.Handler
	rateLimit        RateLimit
	logger           zerolog.Logger
}

func NewHandler(
	userService service.UserService,
	subjectService service.SubjectService,
	markService service.MarkService,
	dashboardService service.DashboardService,
	auth *middleware.Authenticator,
	db Pinger,
	metrics http.Handler,
	rateLimit RateLimit,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		userService:      userService,
		subjectService:   subjectService,
		markService:      markService,
		dashboardService: dashboardService,
		auth:             auth,
		db:               db,
		metrics:          metrics,
		rateLimit:        rateLimit,
		logger:           logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadinessCheck)
	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics)
	}

	teacherOnly := middleware.RequireRole(models.RoleTeacher)
	limited := h.writeLimiter()

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/subjects", h.ListSubjects)
		api.Get("/grading/policy", h.GetGradingPolicy)

		api.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.With(limited).Post("/users", h.RegisterUser)
			r.Get("/users/me", h.GetProfile)
			r.With(teacherOnly).Get("/students", h.ListStudents)

			r.With(teacherOnly, limited).Post("/subjects", h.CreateSubject)
			r.With(teacherOnly, limited).Delete("/subjects/{id}", h.DeleteSubject)

			r.With(teacherOnly, limited).Post("/marks", h.UploadMarks)
			r.Get("/marks/student/{id}", h.GetStudentMarks)
			r.With(teacherOnly).Get("/marks/subject/{id}", h.GetSubjectMarks)

			r.Get("/dashboard/student/{student_id}", h.GetDashboard)
			r.With(limited).Post("/dashboard/student/{student_id}/export", h.ExportTranscript)
		})
	})
}

// writeLimiter throttles mutating routes per client IP.
func (h *Handler) writeLimiter() func(http.Handler) http.Handler {
	if !h.rateLimit.Enabled || h.rateLimit.Requests <= 0 || h.rateLimit.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		h.rateLimit.Requests,
		h.rateLimit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

func identity(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeSuccessStatus(w, http.StatusOK, data)
}

func writeSuccessStatus(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *grading.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   http.StatusText(http.StatusUnprocessableEntity),
			"message": "Validation failed",
			"fields":  verr.Fields,
		})
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrSubjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUserExists), errors.Is(err, service.ErrSubjectExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSemesterMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
