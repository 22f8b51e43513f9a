package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
	"github.com/aasim911-prog/department/internal/service/integration"
)

type MarkService interface {
	UploadMarks(ctx context.Context, actor models.Identity, req *models.UploadMarksRequest) (*models.UploadMarksResponse, error)
	GetStudentMarks(ctx context.Context, actor models.Identity, studentID string) ([]models.MarkWithSubject, error)
	GetSubjectMarks(ctx context.Context, subjectID string) ([]models.MarkWithStudent, error)
}

type markService struct {
	markRepo    repository.MarkRepository
	subjectRepo repository.SubjectRepository
	userRepo    repository.UserRepository
	policy      grading.Policy
	invalidator SummaryInvalidator
	publisher   integration.EventPublisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewMarkService(
	markRepo repository.MarkRepository,
	subjectRepo repository.SubjectRepository,
	userRepo repository.UserRepository,
	policy grading.Policy,
	invalidator SummaryInvalidator,
	publisher integration.EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) MarkService {
	return &markService{
		markRepo:    markRepo,
		subjectRepo: subjectRepo,
		userRepo:    userRepo,
		policy:      policy,
		invalidator: invalidator,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

func (s *markService) UploadMarks(ctx context.Context, actor models.Identity, req *models.UploadMarksRequest) (*models.UploadMarksResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	mark := &models.Mark{
		ID:        uuid.New().String(),
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Internal1: req.Internal1,
		Internal2: req.Internal2,
		Internal3: req.Internal3,
		FinalExam: req.FinalExam,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// out-of-range scores are rejected, never clamped
	if err := s.policy.CheckScores(mark.Scores()); err != nil {
		return nil, err
	}

	student, err := s.userRepo.GetByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil || !student.IsStudent() {
		return nil, ErrStudentNotFound
	}

	subject, err := s.subjectRepo.GetByID(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}
	if req.Semester != nil && *req.Semester != subject.Semester {
		return nil, fmt.Errorf("%w: subject %s belongs to semester %d", ErrSemesterMismatch, subject.Code, subject.Semester)
	}
	mark.Semester = subject.Semester

	mark.UploadedBy, err = actorUserID(ctx, s.userRepo, actor)
	if err != nil {
		return nil, err
	}

	created, err := s.markRepo.Upsert(ctx, mark)
	if err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, fmt.Errorf("%w: %v", ErrSubjectNotFound, err)
		}
		return nil, fmt.Errorf("failed to save marks: %w", err)
	}
	s.metrics.MarkUploaded(created)

	if s.invalidator.Invalidate(mark.StudentID, mark.Semester) {
		s.metrics.Invalidated("local")
	}
	publish(ctx, s.publisher, s.logger, &models.MarksChangedEvent{
		Type:      models.EventMarksUploaded,
		StudentID: mark.StudentID,
		SubjectID: mark.SubjectID,
		Semester:  mark.Semester,
		MarkID:    mark.ID,
		Timestamp: time.Now().Unix(),
	})

	resp := &models.UploadMarksResponse{Mark: *mark, Created: created}
	if pct, graded := s.policy.Percent(mark.Scores()); graded {
		gp := s.policy.GradePoint(pct)
		resp.GradePoint = &gp
	}

	s.logger.Info().
		Str("mark_id", mark.ID).
		Str("student_id", mark.StudentID).
		Str("subject_id", mark.SubjectID).
		Int("semester", mark.Semester).
		Bool("created", created).
		Msg("Marks uploaded")

	return resp, nil
}

func (s *markService) GetStudentMarks(ctx context.Context, actor models.Identity, studentID string) ([]models.MarkWithSubject, error) {
	if err := authorizeStudentAccess(ctx, s.userRepo, actor, studentID); err != nil {
		return nil, err
	}

	marks, err := s.markRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student marks: %w", err)
	}
	return marks, nil
}

func (s *markService) GetSubjectMarks(ctx context.Context, subjectID string) ([]models.MarkWithStudent, error) {
	subject, err := s.subjectRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	marks, err := s.markRepo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject marks: %w", err)
	}
	return marks, nil
}
