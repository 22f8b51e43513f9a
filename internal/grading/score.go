package grading

import (
	"fmt"
	"math"
)

// Scores are the raw assessment components of one mark. A nil pointer means
// the component has not been entered yet.
type Scores struct {
	Internals []*float64
	Final     *float64
}

// ScoreDecimals is the precision scores are stored with. Finer input is
// rejected rather than rounded on write.
const ScoreDecimals = 2

// CheckScores fails fast on out-of-range components instead of clamping them.
func (p Policy) CheckScores(s Scores) error {
	var fields []FieldError

	for i, v := range s.Internals {
		if v == nil {
			continue
		}
		name := fmt.Sprintf("internal%d", i+1)
		if i >= p.Bounds.InternalCount {
			fields = append(fields, FieldError{Field: name, Message: "not part of the grading policy"})
			continue
		}
		if msg := checkComponent(*v, p.Bounds.InternalMax); msg != "" {
			fields = append(fields, FieldError{Field: name, Message: msg})
		}
	}

	if s.Final != nil {
		if msg := checkComponent(*s.Final, p.Bounds.FinalMax); msg != "" {
			fields = append(fields, FieldError{Field: "final_exam", Message: msg})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkComponent(v, max float64) string {
	switch {
	case !inRange(v, max):
		return fmt.Sprintf("must be between 0 and %g", max)
	case !withinPrecision(v):
		return fmt.Sprintf("must have at most %d decimal places", ScoreDecimals)
	}
	return ""
}

func inRange(v, max float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= max
}

func withinPrecision(v float64) bool {
	scaled := v * math.Pow10(ScoreDecimals)
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// Percent normalizes the scores to 0..100. The boolean is false when the mark
// has no grade point yet under the MissingFinal rule. Missing internals count
// as zero.
func (p Policy) Percent(s Scores) (float64, bool) {
	var final float64
	if s.Final != nil {
		final = *s.Final
	} else if p.MissingFinal == MissingFinalExclude {
		return 0, false
	}

	var internal float64
	for i, v := range s.Internals {
		if v != nil && i < p.Bounds.InternalCount {
			internal += *v
		}
	}
	internalMax := p.Bounds.InternalMax * float64(p.Bounds.InternalCount)

	var ratio float64
	switch p.Normalization {
	case NormalizeFinalOnly:
		ratio = final / p.Bounds.FinalMax
	case NormalizeWeighted:
		ratio = p.FinalWeight * final / p.Bounds.FinalMax
		if internalMax > 0 {
			ratio += p.InternalWeight * internal / internalMax
		}
	default:
		ratio = (internal + final) / p.Bounds.MaxTotal()
	}

	// trim representation noise so 176/220 lands on 80, not 79.999...
	return math.Round(ratio*100*1e9) / 1e9, true
}

// GradePoint applies the step function of the scale.
func (p Policy) GradePoint(percent float64) float64 {
	for _, th := range p.Scale {
		if percent >= th.MinPercent {
			return th.GradePoint
		}
	}
	return p.FloorGradePoint
}

// Round2 rounds for display. Aggregation keeps full precision.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
