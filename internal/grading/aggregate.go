package grading

import (
	"errors"
	"fmt"
	"sort"
)

type Subject struct {
	ID       string
	Code     string
	Semester int
	Credits  int
}

type Mark struct {
	ID        string
	StudentID string
	SubjectID string
	// Semester is optional; zero means "take it from the subject".
	Semester int
	Scores   Scores
}

type SubjectResult struct {
	SubjectID string
	MarkID    string
	Credits   int
	Percent   float64
	// GradePoint is nil while the mark has no grade under the policy.
	GradePoint *float64
	Tier       Tier
}

type SemesterSummary struct {
	Semester int
	// SGPA keeps full precision; round with Round2 for display.
	SGPA         float64
	TotalCredits int
	Subjects     []SubjectResult
	// Anomalies is filled by Aggregator.Semester only; Transcript reports
	// them once for the whole student.
	Anomalies []*ReferentialError
}

// HasData reports whether at least one subject produced a grade point.
func (s SemesterSummary) HasData() bool {
	return s.TotalCredits > 0
}

type OverallSummary struct {
	CGPA         float64
	TotalCredits int
	Semesters    int
}

type TrendPoint struct {
	Semester int
	SGPA     float64
}

type Transcript struct {
	StudentID string
	Version   string
	// Semesters holds every slot from FirstSemester to LastSemester in order.
	Semesters []SemesterSummary
	Overall   OverallSummary
	Trend     []TrendPoint
	Anomalies []*ReferentialError
}

// AnomalyError joins the anomalies into one error, or returns nil.
func (t *Transcript) AnomalyError() error {
	if len(t.Anomalies) == 0 {
		return nil
	}
	errs := make([]error, 0, len(t.Anomalies))
	for _, a := range t.Anomalies {
		errs = append(errs, a)
	}
	return errors.Join(errs...)
}

// Semester returns slot n of the transcript.
func (t *Transcript) Semester(n int) (SemesterSummary, bool) {
	for _, s := range t.Semesters {
		if s.Semester == n {
			return s, true
		}
	}
	return SemesterSummary{}, false
}

type Aggregator struct {
	policy Policy
}

func NewAggregator(policy Policy) (*Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{policy: policy}, nil
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Semester aggregates one slot. Marks for subjects of other semesters are
// skipped. A mark whose subject is unknown, or whose semester disagrees with
// its subject in a way that touches this slot, is excluded and reported in
// Anomalies.
func (a *Aggregator) Semester(semester int, subjects []Subject, marks []Mark) (SemesterSummary, error) {
	if semester < FirstSemester || semester > LastSemester {
		return SemesterSummary{}, &ValidationError{Fields: []FieldError{{
			Field:   "semester",
			Message: fmt.Sprintf("must be between %d and %d", FirstSemester, LastSemester),
		}}}
	}

	verr := &ValidationError{}
	own := make([]Subject, 0, len(subjects))
	for i, s := range subjects {
		if s.Semester != semester {
			continue
		}
		checkSubject(verr, i, s)
		own = append(own, s)
	}

	index := indexSubjects(subjects)
	var anomalies []*ReferentialError
	bySubject := make(map[string]Mark)
	for i, m := range marks {
		subject, ok := index[m.SubjectID]
		var reason ReferenceReason
		switch {
		case !ok:
			reason = ReasonMissingSubject
		case m.Semester != 0 && m.Semester != subject.Semester:
			if m.Semester != semester && subject.Semester != semester {
				continue
			}
			reason = ReasonSemesterMismatch
		case subject.Semester != semester:
			continue
		}
		if reason != "" {
			anomalies = append(anomalies, &ReferentialError{
				MarkID:    m.ID,
				StudentID: m.StudentID,
				SubjectID: m.SubjectID,
				Reason:    reason,
			})
			continue
		}
		a.checkMark(verr, i, m, bySubject)
	}
	if err := verr.orNil(); err != nil {
		return SemesterSummary{}, err
	}

	summary := a.summarize(semester, own, bySubject)
	summary.Anomalies = anomalies
	return summary, nil
}

// Transcript aggregates every semester slot for one student. Marks that
// cannot be attributed end up in Anomalies; invalid input fails the call.
func (a *Aggregator) Transcript(studentID string, subjects []Subject, marks []Mark) (*Transcript, error) {
	verr := &ValidationError{}
	for i, s := range subjects {
		checkSubject(verr, i, s)
	}
	index := indexSubjects(subjects)

	var anomalies []*ReferentialError
	bySubject := make(map[string]Mark)
	for i, m := range marks {
		subject, ok := index[m.SubjectID]
		var reason ReferenceReason
		switch {
		case m.StudentID != studentID:
			reason = ReasonStudentMismatch
		case !ok:
			reason = ReasonMissingSubject
		case m.Semester != 0 && m.Semester != subject.Semester:
			reason = ReasonSemesterMismatch
		}
		if reason != "" {
			anomalies = append(anomalies, &ReferentialError{
				MarkID:    m.ID,
				StudentID: m.StudentID,
				SubjectID: m.SubjectID,
				Reason:    reason,
			})
			continue
		}
		a.checkMark(verr, i, m, bySubject)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	bySemester := make(map[int][]Subject)
	for _, s := range subjects {
		bySemester[s.Semester] = append(bySemester[s.Semester], s)
	}

	t := &Transcript{
		StudentID: studentID,
		Version:   a.policy.Version,
		Semesters: make([]SemesterSummary, 0, LastSemester),
		Trend:     []TrendPoint{},
		Anomalies: anomalies,
	}
	for n := FirstSemester; n <= LastSemester; n++ {
		summary := a.summarize(n, bySemester[n], bySubject)
		t.Semesters = append(t.Semesters, summary)
		if summary.HasData() {
			t.Trend = append(t.Trend, TrendPoint{Semester: n, SGPA: summary.SGPA})
		}
	}
	t.Overall = Overall(t.Semesters)

	return t, nil
}

// Overall weights every SGPA by its credits. Semesters without credits do not
// enter the denominator.
func Overall(summaries []SemesterSummary) OverallSummary {
	var (
		weighted float64
		out      OverallSummary
	)
	for _, s := range summaries {
		if s.TotalCredits <= 0 {
			continue
		}
		weighted += s.SGPA * float64(s.TotalCredits)
		out.TotalCredits += s.TotalCredits
		out.Semesters++
	}
	if out.TotalCredits > 0 {
		out.CGPA = weighted / float64(out.TotalCredits)
	}
	return out
}

func (a *Aggregator) summarize(semester int, subjects []Subject, marks map[string]Mark) SemesterSummary {
	ordered := make([]Subject, len(subjects))
	copy(ordered, subjects)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Code != ordered[j].Code {
			return ordered[i].Code < ordered[j].Code
		}
		return ordered[i].ID < ordered[j].ID
	})

	summary := SemesterSummary{Semester: semester, Subjects: []SubjectResult{}}
	var weighted float64
	for _, s := range ordered {
		m, ok := marks[s.ID]
		if !ok {
			continue
		}
		res := SubjectResult{SubjectID: s.ID, MarkID: m.ID, Credits: s.Credits}
		if pct, graded := a.policy.Percent(m.Scores); graded {
			gp := a.policy.GradePoint(pct)
			res.Percent = pct
			res.GradePoint = &gp
			res.Tier = a.policy.TierOf(gp)
			weighted += gp * float64(s.Credits)
			summary.TotalCredits += s.Credits
		}
		summary.Subjects = append(summary.Subjects, res)
	}
	if summary.TotalCredits > 0 {
		summary.SGPA = weighted / float64(summary.TotalCredits)
	}
	return summary
}

func (a *Aggregator) checkMark(verr *ValidationError, i int, m Mark, seen map[string]Mark) {
	field := fmt.Sprintf("marks[%d]", i)
	if err := a.policy.CheckScores(m.Scores); err != nil {
		verr.merge(field, err)
		return
	}
	if _, dup := seen[m.SubjectID]; dup {
		verr.add(field, "duplicate mark for subject %s", m.SubjectID)
		return
	}
	seen[m.SubjectID] = m
}

func checkSubject(verr *ValidationError, i int, s Subject) {
	field := fmt.Sprintf("subjects[%d]", i)
	if s.Semester < FirstSemester || s.Semester > LastSemester {
		verr.add(field+".semester", "must be between %d and %d", FirstSemester, LastSemester)
	}
	if s.Credits <= 0 {
		verr.add(field+".credits", "must be positive")
	}
}

func indexSubjects(subjects []Subject) map[string]Subject {
	index := make(map[string]Subject, len(subjects))
	for _, s := range subjects {
		index[s.ID] = s
	}
	return index
}
