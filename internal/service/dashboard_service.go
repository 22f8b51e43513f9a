package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/cache"
	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
)

type DashboardService interface {
	GetDashboard(ctx context.Context, actor models.Identity, studentID string) (*models.Dashboard, error)
	ExportTranscript(ctx context.Context, actor models.Identity, studentID string) (*models.ExportResponse, error)
	Policy() grading.Policy
}

type DashboardConfig struct {
	PresignExpiry time.Duration
}

type dashboardService struct {
	userRepo    repository.UserRepository
	subjectRepo repository.SubjectRepository
	markRepo    repository.MarkRepository
	aggregator  *grading.Aggregator
	cache       SummaryCache
	storage     repository.TranscriptStorage
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	config      DashboardConfig
}

// NewDashboardService wires the read side. storage may be nil when exports
// are turned off.
func NewDashboardService(
	userRepo repository.UserRepository,
	subjectRepo repository.SubjectRepository,
	markRepo repository.MarkRepository,
	aggregator *grading.Aggregator,
	summaryCache SummaryCache,
	storage repository.TranscriptStorage,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config DashboardConfig,
) DashboardService {
	if config.PresignExpiry <= 0 {
		config.PresignExpiry = 15 * time.Minute
	}
	return &dashboardService{
		userRepo:    userRepo,
		subjectRepo: subjectRepo,
		markRepo:    markRepo,
		aggregator:  aggregator,
		cache:       summaryCache,
		storage:     storage,
		metrics:     m,
		logger:      logger,
		config:      config,
	}
}

func (s *dashboardService) Policy() grading.Policy {
	return s.aggregator.Policy()
}

func (s *dashboardService) GetDashboard(ctx context.Context, actor models.Identity, studentID string) (*models.Dashboard, error) {
	if err := authorizeStudentAccess(ctx, s.userRepo, actor, studentID); err != nil {
		return nil, err
	}

	student, err := s.userRepo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil || !student.IsStudent() {
		return nil, ErrStudentNotFound
	}

	slots, ok := s.cachedSlots(studentID)
	if ok {
		s.metrics.CacheHit()
	} else {
		s.metrics.CacheMiss()
		slots, err = s.aggregate(ctx, studentID)
		if err != nil {
			return nil, err
		}
	}

	return s.assemble(student, slots), nil
}

// cachedSlots succeeds only when every semester and the transcript slot are
// present; a partial hit is treated as a miss.
func (s *dashboardService) cachedSlots(studentID string) (map[int]SummarySlot, bool) {
	slots := make(map[int]SummarySlot, grading.LastSemester+1)
	for n := cache.TranscriptSlot; n <= grading.LastSemester; n++ {
		slot, ok := s.cache.Get(cache.Key{StudentID: studentID, Semester: n})
		if !ok {
			return nil, false
		}
		slots[n] = slot
	}
	return slots, true
}

func (s *dashboardService) aggregate(ctx context.Context, studentID string) (map[int]SummarySlot, error) {
	start := time.Now()
	gen := s.cache.Generation(studentID)

	marks, err := s.markRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student marks: %w", err)
	}

	subjectIDs := make([]string, 0, len(marks))
	seen := make(map[string]bool, len(marks))
	markByID := make(map[string]models.Mark, len(marks))
	gradingMarks := make([]grading.Mark, 0, len(marks))
	for _, m := range marks {
		markByID[m.ID] = m.Mark
		gradingMarks = append(gradingMarks, m.ToGrading())
		if !seen[m.SubjectID] {
			seen[m.SubjectID] = true
			subjectIDs = append(subjectIDs, m.SubjectID)
		}
	}

	subjects, err := s.subjectRepo.GetByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get subjects: %w", err)
	}
	subjectByID := make(map[string]models.Subject, len(subjects))
	gradingSubjects := make([]grading.Subject, 0, len(subjects))
	for _, sub := range subjects {
		subjectByID[sub.ID] = sub
		gradingSubjects = append(gradingSubjects, sub.ToGrading())
	}

	transcript, err := s.aggregator.Transcript(studentID, gradingSubjects, gradingMarks)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transcript: %w", err)
	}

	for _, a := range transcript.Anomalies {
		s.metrics.Anomaly(string(a.Reason))
	}
	if err := transcript.AnomalyError(); err != nil {
		s.logger.Warn().Err(err).
			Str("student_id", studentID).
			Int("anomalies", len(transcript.Anomalies)).
			Msg("Marks excluded from transcript")
	}

	slots := make(map[int]SummarySlot, grading.LastSemester+1)
	slots[cache.TranscriptSlot] = SummarySlot{Anomalies: transcript.Anomalies}
	for _, summary := range transcript.Semesters {
		slots[summary.Semester] = SummarySlot{
			Summary: summary,
			Data:    s.semesterData(summary, subjectByID, markByID),
		}
	}
	stored := true
	for n, slot := range slots {
		if !s.cache.SetIfCurrent(cache.Key{StudentID: studentID, Semester: n}, slot, gen) {
			stored = false
		}
	}

	s.metrics.ObserveAggregation(time.Since(start))
	s.logger.Debug().
		Str("student_id", studentID).
		Int("marks", len(marks)).
		Bool("cached", stored).
		Dur("duration", time.Since(start)).
		Msg("Transcript aggregated")

	return slots, nil
}

func (s *dashboardService) semesterData(
	summary grading.SemesterSummary,
	subjects map[string]models.Subject,
	marks map[string]models.Mark,
) models.SemesterData {
	policy := s.aggregator.Policy()

	data := models.SemesterData{
		Semester:     summary.Semester,
		SGPA:         grading.Round2(summary.SGPA),
		TotalCredits: summary.TotalCredits,
		Subjects:     make([]models.SubjectGrade, 0, len(summary.Subjects)),
	}
	if summary.HasData() {
		tier := policy.TierOf(summary.SGPA)
		data.Tier = string(tier)
		data.Color = policy.ColorOf(tier)
	}

	for _, r := range summary.Subjects {
		g := models.SubjectGrade{
			Subject:    subjects[r.SubjectID],
			Marks:      marks[r.MarkID],
			GradePoint: r.GradePoint,
		}
		if r.GradePoint != nil {
			pct := grading.Round2(r.Percent)
			g.Percentage = &pct
			g.Tier = string(r.Tier)
			g.Color = policy.ColorOf(r.Tier)
		}
		data.Subjects = append(data.Subjects, g)
	}

	return data
}

func (s *dashboardService) assemble(student *models.User, slots map[int]SummarySlot) *models.Dashboard {
	policy := s.aggregator.Policy()

	d := &models.Dashboard{
		Student:        *student,
		SemesterData:   make(map[string]models.SemesterData, grading.LastSemester),
		Trend:          []models.TrendPoint{},
		GradingVersion: policy.Version,
		Anomalies:      slots[cache.TranscriptSlot].Anomalies,
	}
	if d.Anomalies == nil {
		d.Anomalies = []*grading.ReferentialError{}
	}

	summaries := make([]grading.SemesterSummary, 0, grading.LastSemester)
	for n := grading.FirstSemester; n <= grading.LastSemester; n++ {
		slot := slots[n]
		d.SemesterData[models.SemesterKey(n)] = slot.Data
		summaries = append(summaries, slot.Summary)
		if slot.Summary.HasData() {
			d.Trend = append(d.Trend, models.TrendPoint{Semester: n, SGPA: grading.Round2(slot.Summary.SGPA)})
		}
	}

	overall := grading.Overall(summaries)
	d.CGPA = grading.Round2(overall.CGPA)
	d.TotalCredits = overall.TotalCredits
	if overall.TotalCredits > 0 {
		tier := policy.TierOf(overall.CGPA)
		d.Tier = string(tier)
		d.Color = policy.ColorOf(tier)
	}

	return d
}

func (s *dashboardService) ExportTranscript(ctx context.Context, actor models.Identity, studentID string) (*models.ExportResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	dashboard, err := s.GetDashboard(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	body, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}

	key := repository.TranscriptObjectKey(studentID, time.Now())
	if err := s.storage.Put(ctx, key, body, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to store transcript: %w", err)
	}

	url, err := s.storage.PresignedURL(ctx, key, s.config.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transcript url: %w", err)
	}

	s.logger.Info().
		Str("student_id", studentID).
		Str("object_key", key).
		Msg("Transcript exported")

	return &models.ExportResponse{
		ObjectKey: key,
		URL:       url,
		ExpiresIn: int64(s.config.PresignExpiry.Seconds()),
	}, nil
}
