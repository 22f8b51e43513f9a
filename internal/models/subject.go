package models

import (
	"time"

	"github.com/aasim911-prog/department/internal/grading"
)

type Subject struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Code       string    `json:"code" db:"code"`
	Semester   int       `json:"semester" db:"semester"`
	Credits    int       `json:"credits" db:"credits"`
	Department string    `json:"department" db:"department"`
	CreatedBy  *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (s Subject) ToGrading() grading.Subject {
	return grading.Subject{
		ID:       s.ID,
		Code:     s.Code,
		Semester: s.Semester,
		Credits:  s.Credits,
	}
}

type SubjectFilter struct {
	Department string
	Semester   int
}
