package models

// Data Transfer Objects

// CreateUserRequest registers the profile of the token subject. The role is
// taken from the token, not from the body.
type CreateUserRequest struct {
	Name       string  `json:"name" validate:"required,min=2,max=255"`
	Department string  `json:"department" validate:"required,max=128"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
	StudentID  *string `json:"student_id" validate:"omitempty,min=1,max=64"`
	Semester   *int    `json:"semester" validate:"omitempty,min=1,max=8"`
}

type CreateSubjectRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=255"`
	Code       string `json:"code" validate:"required,max=32"`
	Semester   int    `json:"semester" validate:"required,min=1,max=8"`
	Credits    int    `json:"credits" validate:"required,min=1,max=6"`
	Department string `json:"department" validate:"required,max=128"`
}

// UploadMarksRequest is an upsert keyed by (student_id, subject_id). Score
// ranges are checked against the active grading policy.
type UploadMarksRequest struct {
	StudentID string   `json:"student_id" validate:"required,max=64"`
	SubjectID string   `json:"subject_id" validate:"required,uuid"`
	Semester  *int     `json:"semester" validate:"omitempty,min=1,max=8"`
	Internal1 *float64 `json:"internal1"`
	Internal2 *float64 `json:"internal2"`
	Internal3 *float64 `json:"internal3"`
	FinalExam *float64 `json:"final_exam"`
}

type UploadMarksResponse struct {
	Mark       Mark     `json:"mark"`
	GradePoint *float64 `json:"grade_point"`
	Created    bool     `json:"created"`
}

type StudentsResponse struct {
	Students []User `json:"students"`
	Total    int    `json:"total"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}
