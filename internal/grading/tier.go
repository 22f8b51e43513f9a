package grading

import "fmt"

// Tier is the display bucket of a grade point. It never feeds back into
// SGPA or CGPA.
type Tier string

const (
	TierExcellent    Tier = "excellent"
	TierGood         Tier = "good"
	TierAverage      Tier = "average"
	TierBelowAverage Tier = "below_average"
	TierPoor         Tier = "poor"
)

var tierOrder = []Tier{TierExcellent, TierGood, TierAverage, TierBelowAverage, TierPoor}

// Rank orders tiers by severity: poor is 0, excellent is 4.
func (t Tier) Rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return len(tierOrder) - 1 - i
		}
	}
	return 0
}

type TierRule struct {
	Tier          Tier    `json:"tier"`
	MinGradePoint float64 `json:"min_grade_point"`
	Color         string  `json:"color"`
}

func DefaultTiers() []TierRule {
	return []TierRule{
		{Tier: TierExcellent, MinGradePoint: 9, Color: "#10b981"},
		{Tier: TierGood, MinGradePoint: 8, Color: "#3b82f6"},
		{Tier: TierAverage, MinGradePoint: 7, Color: "#f59e0b"},
		{Tier: TierBelowAverage, MinGradePoint: 6, Color: "#f97316"},
		{Tier: TierPoor, MinGradePoint: 0, Color: "#ef4444"},
	}
}

var defaultTiers = DefaultTiers()

// TierOf classifies with the default tier table.
func TierOf(gradePoint float64) Tier {
	return tierOf(defaultTiers, gradePoint)
}

func (p Policy) TierOf(gradePoint float64) Tier {
	return tierOf(p.Tiers, gradePoint)
}

// ColorOf returns the configured display color of a tier.
func (p Policy) ColorOf(t Tier) string {
	for _, rule := range p.Tiers {
		if rule.Tier == t {
			return rule.Color
		}
	}
	return ""
}

// tierOf is total: anything below every bound, NaN included, is poor.
func tierOf(rules []TierRule, gp float64) Tier {
	for _, rule := range rules {
		if rule.Tier == TierPoor {
			break
		}
		if gp >= rule.MinGradePoint {
			return rule.Tier
		}
	}
	return TierPoor
}

func validateTiers(rules []TierRule) error {
	if len(rules) != len(tierOrder) {
		return fmt.Errorf("%w: expected %d tiers, got %d", ErrInvalidPolicy, len(tierOrder), len(rules))
	}
	for i, rule := range rules {
		if rule.Tier != tierOrder[i] {
			return fmt.Errorf("%w: tier %d must be %q", ErrInvalidPolicy, i, tierOrder[i])
		}
		if i > 0 && rule.Tier != TierPoor && rule.MinGradePoint >= rules[i-1].MinGradePoint {
			return fmt.Errorf("%w: tier %q bound must be below %q", ErrInvalidPolicy, rule.Tier, rules[i-1].Tier)
		}
	}
	return nil
}
