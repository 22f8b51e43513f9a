package models

import (
	"time"

	"github.com/aasim911-prog/department/internal/grading"
)

type Mark struct {
	ID         string    `json:"id" db:"id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	SubjectID  string    `json:"subject_id" db:"subject_id"`
	Semester   int       `json:"semester" db:"semester"`
	Internal1  *float64  `json:"internal1" db:"internal1"`
	Internal2  *float64  `json:"internal2" db:"internal2"`
	Internal3  *float64  `json:"internal3" db:"internal3"`
	FinalExam  *float64  `json:"final_exam" db:"final_exam"`
	UploadedBy *string   `json:"uploaded_by,omitempty" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (m Mark) Scores() grading.Scores {
	return grading.Scores{
		Internals: []*float64{m.Internal1, m.Internal2, m.Internal3},
		Final:     m.FinalExam,
	}
}

func (m Mark) ToGrading() grading.Mark {
	return grading.Mark{
		ID:        m.ID,
		StudentID: m.StudentID,
		SubjectID: m.SubjectID,
		Semester:  m.Semester,
		Scores:    m.Scores(),
	}
}

// MarkWithSubject is a mark joined with the subject it belongs to.
type MarkWithSubject struct {
	Mark
	SubjectName string `json:"subject_name" db:"subject_name"`
	SubjectCode string `json:"subject_code" db:"subject_code"`
	Credits     int    `json:"credits" db:"credits"`
}

// MarkWithStudent is a mark joined with the student it belongs to.
type MarkWithStudent struct {
	Mark
	StudentName string `json:"student_name" db:"student_name"`
}
