package grading

import (
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError fails a whole aggregation. It is never clamped around.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) merge(prefix string, err error) {
	ve, ok := err.(*ValidationError)
	if !ok {
		e.add(prefix, "%v", err)
		return
	}
	for _, f := range ve.Fields {
		e.Fields = append(e.Fields, FieldError{Field: prefix + "." + f.Field, Message: f.Message})
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

type ReferenceReason string

const (
	ReasonMissingSubject   ReferenceReason = "missing_subject"
	ReasonStudentMismatch  ReferenceReason = "student_mismatch"
	ReasonSemesterMismatch ReferenceReason = "semester_mismatch"
)

// ReferentialError describes a mark that could not be attributed. The mark is
// left out of every total and reported next to the result.
type ReferentialError struct {
	MarkID    string          `json:"mark_id"`
	StudentID string          `json:"student_id"`
	SubjectID string          `json:"subject_id"`
	Reason    ReferenceReason `json:"reason"`
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("mark %s (student %s, subject %s): %s", e.MarkID, e.StudentID, e.SubjectID, e.Reason)
}
