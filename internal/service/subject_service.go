package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
	"github.com/aasim911-prog/department/internal/service/integration"
)

type SubjectService interface {
	CreateSubject(ctx context.Context, actor models.Identity, req *models.CreateSubjectRequest) (*models.Subject, error)
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error)
	DeleteSubject(ctx context.Context, id string) error
}

type subjectService struct {
	subjectRepo repository.SubjectRepository
	markRepo    repository.MarkRepository
	userRepo    repository.UserRepository
	invalidator SummaryInvalidator
	publisher   integration.EventPublisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewSubjectService(
	subjectRepo repository.SubjectRepository,
	markRepo repository.MarkRepository,
	userRepo repository.UserRepository,
	invalidator SummaryInvalidator,
	publisher integration.EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) SubjectService {
	return &subjectService{
		subjectRepo: subjectRepo,
		markRepo:    markRepo,
		userRepo:    userRepo,
		invalidator: invalidator,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

func (s *subjectService) CreateSubject(ctx context.Context, actor models.Identity, req *models.CreateSubjectRequest) (*models.Subject, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	createdBy, err := actorUserID(ctx, s.userRepo, actor)
	if err != nil {
		return nil, err
	}

	subject := &models.Subject{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(req.Name),
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Semester:   req.Semester,
		Credits:    req.Credits,
		Department: strings.TrimSpace(req.Department),
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}

	if err := s.subjectRepo.Create(ctx, subject); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSubjectExists
		}
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	s.logger.Info().
		Str("subject_id", subject.ID).
		Str("code", subject.Code).
		Int("semester", subject.Semester).
		Msg("Subject created")

	return subject, nil
}

func (s *subjectService) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	subjects, err := s.subjectRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// DeleteSubject removes the subject with its marks and drops every summary
// that included them.
func (s *subjectService) DeleteSubject(ctx context.Context, id string) error {
	subject, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get subject: %w", err)
	}
	if subject == nil {
		return ErrSubjectNotFound
	}

	studentIDs, err := s.markRepo.ListStudentIDsBySubject(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list affected students: %w", err)
	}

	deleted, err := s.subjectRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	if !deleted {
		return ErrSubjectNotFound
	}

	for _, studentID := range studentIDs {
		if s.invalidator.Invalidate(studentID, subject.Semester) {
			s.metrics.Invalidated("local")
		}
		publish(ctx, s.publisher, s.logger, &models.MarksChangedEvent{
			Type:      models.EventSubjectDeleted,
			StudentID: studentID,
			SubjectID: id,
			Semester:  subject.Semester,
			Timestamp: time.Now().Unix(),
		})
	}

	s.logger.Info().
		Str("subject_id", id).
		Int("affected_students", len(studentIDs)).
		Msg("Subject deleted")

	return nil
}
