package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/grading"
	"github.com/aasim911-prog/department/internal/metrics"
	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/worker/queue"
)

// Invalidator drops cached summaries.
type Invalidator interface {
	Invalidate(studentID string, semester int) bool
	InvalidateStudent(studentID string) int
}

type InvalidationWorker interface {
	Start(ctx context.Context) error
	Stop() error
	HandleEvent(event models.MarksChangedEvent) error
	GetStats() WorkerStats
}

type WorkerStats struct {
	ActiveWorkers  int `json:"active_workers"`
	TotalProcessed int `json:"total_processed"`
	Invalidated    int `json:"invalidated"`
	FailedJobs     int `json:"failed_jobs"`
	QueueLength    int `json:"queue_length"`
}

type invalidationWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.RabbitMQConsumer
	cache         Invalidator
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	stats         WorkerStats
	statsMutex    sync.RWMutex
	startTime     time.Time
	done          chan struct{}
}

func NewInvalidationWorker(
	workerPool *WorkerPool,
	queueConsumer queue.RabbitMQConsumer,
	cache Invalidator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) InvalidationWorker {
	return &invalidationWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		cache:         cache,
		metrics:       m,
		logger:        logger,
		startTime:     time.Now(),
		done:          make(chan struct{}),
	}
}

func (w *invalidationWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting invalidation worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Invalidation worker started successfully")
	return nil
}

// Stop cancels the subscription first so no new work arrives, then drains
// the pool.
func (w *invalidationWorker) Stop() error {
	w.logger.Info().Msg("Stopping invalidation worker...")

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		w.logger.Warn().Msg("Timed out waiting for message loop to exit")
	}

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Invalidation worker stopped")

	return nil
}

func (w *invalidationWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			submitted := w.workerPool.Submit(func() {
				w.handle(msg)
			})
			if !submitted {
				if err := msg.Nack(false, true); err != nil {
					w.logger.Error().Err(err).Msg("Failed to nack message")
				}
			}
		}
	}
}

func (w *invalidationWorker) handle(msg queue.RabbitMQMessage) {
	err := w.processMessage(msg)
	w.metrics.EventProcessed(err == nil)

	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		w.statsMutex.Lock()
		w.stats.TotalProcessed++
		w.statsMutex.Unlock()
		return
	}

	w.logger.Error().Err(err).Msg("Failed to process message")

	w.statsMutex.Lock()
	w.stats.FailedJobs++
	w.statsMutex.Unlock()

	// a malformed event will never succeed, so it is dropped instead of requeued
	if isPermanentError(err) {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}

func (w *invalidationWorker) processMessage(msg queue.RabbitMQMessage) error {
	var event models.MarksChangedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}
	return w.HandleEvent(event)
}

// HandleEvent drops the summaries named by the event. Events for keys that
// are not cached are no-ops. A zero semester drops the whole student.
func (w *invalidationWorker) HandleEvent(event models.MarksChangedEvent) error {
	switch event.Type {
	case models.EventMarksUploaded, models.EventSubjectDeleted:
	default:
		return permanent(fmt.Errorf("unknown event type %q", event.Type))
	}

	if strings.TrimSpace(event.StudentID) == "" {
		return permanent(errors.New("empty student_id"))
	}

	var dropped int
	switch {
	case event.Semester == 0:
		dropped = w.cache.InvalidateStudent(event.StudentID)
	case event.Semester >= grading.FirstSemester && event.Semester <= grading.LastSemester:
		if w.cache.Invalidate(event.StudentID, event.Semester) {
			dropped = 1
		}
	default:
		return permanent(fmt.Errorf("semester %d out of range", event.Semester))
	}

	if dropped > 0 {
		w.metrics.Invalidated("event")
		w.statsMutex.Lock()
		w.stats.Invalidated += dropped
		w.statsMutex.Unlock()
	}

	w.logger.Debug().
		Str("event", string(event.Type)).
		Str("student_id", event.StudentID).
		Int("semester", event.Semester).
		Int("dropped", dropped).
		Msg("Summary cache invalidated")

	return nil
}

func (w *invalidationWorker) GetStats() WorkerStats {
	w.statsMutex.Lock()
	defer w.statsMutex.Unlock()

	queueLength, err := w.queueConsumer.GetQueueLength()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to get queue length")
	} else {
		w.stats.QueueLength = queueLength
	}

	w.stats.ActiveWorkers = w.workerPool.GetActiveWorkers()

	return w.stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
