package models

type EventType string

const (
	EventMarksUploaded  EventType = "marks.uploaded"
	EventSubjectDeleted EventType = "subject.deleted"
)

// MarksChangedEvent tells cache holders which summaries went stale.
type MarksChangedEvent struct {
	Type      EventType `json:"type"`
	StudentID string    `json:"student_id,omitempty"`
	SubjectID string    `json:"subject_id"`
	Semester  int       `json:"semester"`
	MarkID    string    `json:"mark_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
