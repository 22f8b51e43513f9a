package grading

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func scores(i1, i2, i3, final *float64) Scores {
	return Scores{Internals: []*float64{i1, i2, i3}, Final: final}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
		ok     bool
	}{
		{name: "default", mutate: func(p *Policy) {}, ok: true},
		{name: "empty scale", mutate: func(p *Policy) { p.Scale = nil }},
		{name: "ascending thresholds", mutate: func(p *Policy) {
			p.Scale = []Threshold{{MinPercent: 40, GradePoint: 5}, {MinPercent: 90, GradePoint: 10}}
		}},
		{name: "grade point rises as percent falls", mutate: func(p *Policy) {
			p.Scale = []Threshold{{MinPercent: 90, GradePoint: 8}, {MinPercent: 80, GradePoint: 9}}
		}},
		{name: "percent above 100", mutate: func(p *Policy) { p.Scale[0].MinPercent = 120 }},
		{name: "zero final max", mutate: func(p *Policy) { p.Bounds.FinalMax = 0 }},
		{name: "four internals", mutate: func(p *Policy) { p.Bounds.InternalCount = 4 }},
		{name: "unknown normalization", mutate: func(p *Policy) { p.Normalization = "curve" }},
		{name: "weights off", mutate: func(p *Policy) {
			p.Normalization = NormalizeWeighted
			p.InternalWeight, p.FinalWeight = 0.5, 0.6
		}},
		{name: "weights ok", mutate: func(p *Policy) {
			p.Normalization = NormalizeWeighted
			p.InternalWeight, p.FinalWeight = 0.3, 0.7
		}, ok: true},
		{name: "weighted internals without internals", mutate: func(p *Policy) {
			p.Normalization = NormalizeWeighted
			p.Bounds.InternalCount = 0
			p.InternalWeight, p.FinalWeight = 0.3, 0.7
		}},
		{name: "final only weighting without internals", mutate: func(p *Policy) {
			p.Normalization = NormalizeWeighted
			p.Bounds.InternalCount = 0
			p.InternalWeight, p.FinalWeight = 0, 1
		}, ok: true},
		{name: "unknown missing final rule", mutate: func(p *Policy) { p.MissingFinal = "ignore" }},
		{name: "tiers swapped", mutate: func(p *Policy) { p.Tiers[0], p.Tiers[1] = p.Tiers[1], p.Tiers[0] }},
		{name: "tier bound not decreasing", mutate: func(p *Policy) { p.Tiers[1].MinGradePoint = 9.5 }},
		{name: "missing tier", mutate: func(p *Policy) { p.Tiers = p.Tiers[:4] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestPolicy_CheckScores(t *testing.T) {
	p := DefaultPolicy()

	assert.NoError(t, p.CheckScores(scores(f(0), f(40), nil, f(100))))
	assert.NoError(t, p.CheckScores(scores(nil, nil, nil, nil)))

	err := p.CheckScores(scores(f(41), f(-1), f(10), f(100.5)))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, fe := range verr.Fields {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"internal1", "internal2", "final_exam"}, fields)

	err = p.CheckScores(scores(nil, nil, nil, f(math.NaN())))
	assert.Error(t, err)

	p.Bounds.InternalCount = 2
	err = p.CheckScores(scores(f(10), f(10), f(10), f(50)))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "internal3", verr.Fields[0].Field)
}

func TestPolicy_CheckScoresPrecision(t *testing.T) {
	p := DefaultPolicy()

	assert.NoError(t, p.CheckScores(scores(f(12.34), f(0.1), f(39.99), f(95.5))))

	// 40+40+0 with 95.996 is 79.998% (gp 8); stored as 96.00 it would be 80% (gp 9)
	err := p.CheckScores(scores(f(40), f(40), f(0), f(95.996)))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "final_exam", verr.Fields[0].Field)
	assert.Contains(t, verr.Fields[0].Message, "decimal places")

	err = p.CheckScores(scores(f(33.333), nil, nil, f(50)))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "internal1", verr.Fields[0].Field)
}

func TestPolicy_Percent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
		in     Scores
		want   float64
		graded bool
	}{
		{
			name: "total",
			in:   scores(f(30), f(30), f(30), f(80)),
			want: 77.272727273, graded: true,
		},
		{
			name: "exact boundary",
			in:   scores(f(40), f(40), f(0), f(96)),
			want: 80, graded: true,
		},
		{
			name: "missing internals count as zero",
			in:   scores(nil, nil, nil, f(88)),
			want: 40, graded: true,
		},
		{
			name: "missing final excluded",
			in:   scores(f(40), f(40), f(40), nil),
		},
		{
			name:   "missing final as zero",
			mutate: func(p *Policy) { p.MissingFinal = MissingFinalZero },
			in:     scores(f(40), f(40), f(40), nil),
			want:   54.545454545, graded: true,
		},
		{
			name:   "final only",
			mutate: func(p *Policy) { p.Normalization = NormalizeFinalOnly },
			in:     scores(f(0), f(0), f(0), f(82)),
			want:   82, graded: true,
		},
		{
			name: "weighted",
			mutate: func(p *Policy) {
				p.Normalization = NormalizeWeighted
				p.InternalWeight, p.FinalWeight = 0.3, 0.7
			},
			in:   scores(f(40), f(40), f(40), f(50)),
			want: 65, graded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			got, graded := p.Percent(tt.in)
			assert.Equal(t, tt.graded, graded)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestPolicy_GradePoint(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		percent float64
		want    float64
	}{
		{100, 10}, {90, 10}, {89.99, 9}, {80, 9}, {76.4, 8}, {70, 8},
		{60, 7}, {55, 6}, {40, 5}, {39.99, 0}, {0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.GradePoint(tt.percent), "percent %.2f", tt.percent)
	}

	final82 := DefaultPolicy()
	final82.Normalization = NormalizeFinalOnly
	pct, _ := final82.Percent(scores(nil, nil, nil, f(82)))
	assert.Equal(t, 9.0, final82.GradePoint(pct))
}

func TestPolicy_GradePointMonotonic(t *testing.T) {
	p := DefaultPolicy()
	prev := p.GradePoint(0)
	for pct := 0.0; pct <= 100; pct += 0.25 {
		gp := p.GradePoint(pct)
		require.GreaterOrEqual(t, gp, prev, "percent %.2f", pct)
		prev = gp
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 8.57, Round2(60.0/7.0))
	assert.Equal(t, 8.53, Round2(563.0/66.0))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, 10.0, Round2(10))
}
