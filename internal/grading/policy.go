// Package grading turns raw subject marks into grade points, semester SGPA
// and cumulative CGPA. Everything in this package is pure: the same policy
// and the same inputs always produce the same summaries.
package grading

import (
	"errors"
	"fmt"
	"math"
)

// Number of semester slots in a programme.
const (
	FirstSemester = 1
	LastSemester  = 8
)

var ErrInvalidPolicy = errors.New("invalid grading policy")

type NormalizationMode string

const (
	// NormalizeTotal divides the raw total (internals + final) by the
	// maximum attainable total.
	NormalizeTotal NormalizationMode = "total"
	// NormalizeWeighted blends the internal and final percentages.
	NormalizeWeighted NormalizationMode = "weighted"
	// NormalizeFinalOnly grades on the final exam alone.
	NormalizeFinalOnly NormalizationMode = "final_only"
)

// MissingFinalRule decides what happens to a mark that has no final score.
type MissingFinalRule string

const (
	MissingFinalExclude MissingFinalRule = "exclude"
	MissingFinalZero    MissingFinalRule = "zero"
)

type Bounds struct {
	InternalMax   float64 `json:"internal_max"`
	InternalCount int     `json:"internal_count"`
	FinalMax      float64 `json:"final_max"`
}

// MaxTotal is the highest raw total a subject can reach.
func (b Bounds) MaxTotal() float64 {
	return b.InternalMax*float64(b.InternalCount) + b.FinalMax
}

// Threshold maps every percentage at or above MinPercent to GradePoint.
type Threshold struct {
	MinPercent float64 `json:"min_percent"`
	GradePoint float64 `json:"grade_point"`
}

// Policy is a versioned grading configuration supplied by the institution.
type Policy struct {
	Version        string            `json:"version"`
	Bounds         Bounds            `json:"bounds"`
	Normalization  NormalizationMode `json:"normalization"`
	InternalWeight float64           `json:"internal_weight,omitempty"`
	FinalWeight    float64           `json:"final_weight,omitempty"`
	MissingFinal   MissingFinalRule  `json:"missing_final"`
	// Scale is ordered by MinPercent, highest first.
	Scale []Threshold `json:"scale"`
	// FloorGradePoint is awarded below the lowest threshold.
	FloorGradePoint float64    `json:"floor_grade_point"`
	Tiers           []TierRule `json:"tiers"`
}

// DefaultPolicy is the 10-point scale used when nothing else is configured.
func DefaultPolicy() Policy {
	return Policy{
		Version: "2024.1",
		Bounds: Bounds{
			InternalMax:   40,
			InternalCount: 3,
			FinalMax:      100,
		},
		Normalization: NormalizeTotal,
		MissingFinal:  MissingFinalExclude,
		Scale: []Threshold{
			{MinPercent: 90, GradePoint: 10},
			{MinPercent: 80, GradePoint: 9},
			{MinPercent: 70, GradePoint: 8},
			{MinPercent: 60, GradePoint: 7},
			{MinPercent: 50, GradePoint: 6},
			{MinPercent: 40, GradePoint: 5},
		},
		FloorGradePoint: 0,
		Tiers:           DefaultTiers(),
	}
}

func (p Policy) Validate() error {
	if p.Bounds.InternalMax <= 0 || p.Bounds.FinalMax <= 0 {
		return fmt.Errorf("%w: score maxima must be positive", ErrInvalidPolicy)
	}
	if p.Bounds.InternalCount < 0 || p.Bounds.InternalCount > 3 {
		return fmt.Errorf("%w: internal_count must be between 0 and 3", ErrInvalidPolicy)
	}

	switch p.Normalization {
	case NormalizeTotal, NormalizeFinalOnly:
	case NormalizeWeighted:
		if p.InternalWeight < 0 || p.FinalWeight < 0 || math.Abs(p.InternalWeight+p.FinalWeight-1) > 1e-9 {
			return fmt.Errorf("%w: weights must be non-negative and sum to 1", ErrInvalidPolicy)
		}
		if p.Bounds.InternalCount == 0 && p.InternalWeight > 0 {
			return fmt.Errorf("%w: internal_weight needs at least one internal", ErrInvalidPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown normalization %q", ErrInvalidPolicy, p.Normalization)
	}

	switch p.MissingFinal {
	case MissingFinalExclude, MissingFinalZero:
	default:
		return fmt.Errorf("%w: unknown missing_final rule %q", ErrInvalidPolicy, p.MissingFinal)
	}

	if len(p.Scale) == 0 {
		return fmt.Errorf("%w: scale is empty", ErrInvalidPolicy)
	}
	for i, th := range p.Scale {
		if th.MinPercent < 0 || th.MinPercent > 100 {
			return fmt.Errorf("%w: scale[%d] min_percent %.2f outside 0..100", ErrInvalidPolicy, i, th.MinPercent)
		}
		if i == 0 {
			continue
		}
		prev := p.Scale[i-1]
		if th.MinPercent >= prev.MinPercent || th.GradePoint > prev.GradePoint {
			return fmt.Errorf("%w: scale[%d] breaks descending order", ErrInvalidPolicy, i)
		}
	}
	if p.FloorGradePoint > p.Scale[len(p.Scale)-1].GradePoint {
		return fmt.Errorf("%w: floor grade point above lowest threshold", ErrInvalidPolicy)
	}

	return validateTiers(p.Tiers)
}
