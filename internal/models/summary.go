package models

import (
	"fmt"

	"github.com/aasim911-prog/department/internal/grading"
)

// SemesterKey names a semester slot on the wire: semester_1 .. semester_8.
func SemesterKey(n int) string {
	return fmt.Sprintf("semester_%d", n)
}

type SubjectGrade struct {
	Subject    Subject  `json:"subject"`
	Marks      Mark     `json:"marks"`
	Percentage *float64 `json:"percentage,omitempty"`
	GradePoint *float64 `json:"grade_point"`
	Tier       string   `json:"tier,omitempty"`
	Color      string   `json:"color,omitempty"`
}

type SemesterData struct {
	Semester     int            `json:"semester"`
	SGPA         float64        `json:"sgpa"`
	TotalCredits int            `json:"total_credits"`
	Tier         string         `json:"tier,omitempty"`
	Color        string         `json:"color,omitempty"`
	Subjects     []SubjectGrade `json:"subjects"`
}

type TrendPoint struct {
	Semester int     `json:"semester"`
	SGPA     float64 `json:"sgpa"`
}

type Dashboard struct {
	Student        User                        `json:"student"`
	SemesterData   map[string]SemesterData     `json:"semester_data"`
	Trend          []TrendPoint                `json:"trend"`
	CGPA           float64                     `json:"cgpa"`
	TotalCredits   int                         `json:"total_credits"`
	Tier           string                      `json:"tier,omitempty"`
	Color          string                      `json:"color,omitempty"`
	GradingVersion string                      `json:"grading_version"`
	Anomalies      []*grading.ReferentialError `json:"anomalies"`
}

type ExportResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}
