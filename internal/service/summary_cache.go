package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/cache"
	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/service/integration"
)

// SummarySlot is what the summary cache holds for one (student, semester).
// The transcript slot carries only the anomalies.
type SummarySlot struct {
	Summary   grading.SemesterSummary
	Data      models.SemesterData
	Anomalies []*grading.ReferentialError
}

type SummaryInvalidator interface {
	Invalidate(studentID string, semester int) bool
}

type SummaryCache interface {
	SummaryInvalidator
	Get(key cache.Key) (SummarySlot, bool)
	Generation(studentID string) uint64
	SetIfCurrent(key cache.Key, value SummarySlot, gen uint64) bool
}

// publish is fire-and-forget: a lost event only delays invalidation on other
// replicas until the TTL runs out.
func publish(ctx context.Context, publisher integration.EventPublisher, logger zerolog.Logger, event *models.MarksChangedEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishMarksChanged(ctx, event); err != nil {
		logger.Error().Err(err).
			Str("event", string(event.Type)).
			Str("student_id", event.StudentID).
			Msg("Failed to publish marks changed event")
	}
}
