package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedSymmetry(t *testing.T) {
	e := NewEngine(DefaultConfig())
	tests := []struct {
		name string
		a, b float64
	}{{
		"equal ratings",
		1400, 1400,
	}, {
		"200 apart",
		1400, 1600,
	}, {
		"large spread",
		900, 2150.37,
	}, {
		"fractional ratings",
		1403.17, 1399.84,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sum := e.Expected(test.a, test.b) + e.Expected(test.b, test.a)
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.Greater(t, e.Expected(test.a, test.b), 0.0)
			assert.Less(t, e.Expected(test.a, test.b), 1.0)
		})
	}
}

func TestH2HMultiplierTiers(t *testing.T) {
	e := NewEngine(DefaultConfig())
	tests := []struct {
		gap      int
		expected float64
	}{
		{0, 1.0}, {1, 1.0}, {2, 1.0},
		{3, 0.75}, {4, 0.75},
		{5, 0.5}, {6, 0.5},
		{7, 0.25}, {20, 0.25},
	}
	prev := 1.0
	for _, test := range tests {
		got := e.H2HMultiplier(test.gap)
		assert.Equal(t, test.expected, got, "gap=%d", test.gap)
		assert.LessOrEqual(t, got, prev, "multiplier must be non-increasing")
		prev = got
	}
}

func TestEffectiveK(t *testing.T) {
	e := NewEngine(DefaultConfig())
	tests := []struct {
		name     string
		handicap bool
		gap      int
		expected float64
	}{{
		"plain match",
		false, 0, 20,
	}, {
		"handicap only",
		true, 0, 6.0,
	}, {
		"deep history",
		false, 7, 5.0,
	}, {
		"handicap and history",
		true, 3, 4.5,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, e.EffectiveK(test.handicap, test.gap))
		})
	}
}

func TestCalculateMatchDrawAtEqualRatingsIsNeutral(t *testing.T) {
	e := NewEngine(DefaultConfig())
	calc := e.CalculateMatch(1400, 1400, OutcomeDraw, false, 0)
	assert.Equal(t, 0.0, calc.ADelta)
	assert.Equal(t, 0.0, calc.BDelta)
	assert.Equal(t, 1400.0, calc.ANew)
	assert.Equal(t, 1400.0, calc.BNew)
}

func TestCalculateMatchUpsetWin(t *testing.T) {
	e := NewEngine(DefaultConfig())
	calc := e.CalculateMatch(1400, 1600, OutcomeWin, false, 0)
	assert.InDelta(t, 0.2403, calc.ExpectedA, 1e-4)
	assert.Equal(t, 20.0, calc.KEff)
	assert.Equal(t, 1415.19, calc.ANew)
	assert.Equal(t, 1584.81, calc.BNew)
	assert.Equal(t, 15.19, calc.ADelta)
	assert.Equal(t, -15.19, calc.BDelta)
}

func TestCalculateMatchHandicapScalesBothSides(t *testing.T) {
	e := NewEngine(DefaultConfig())
	plain := e.CalculateMatch(1500, 1450, OutcomeWin, false, 0)
	scaled := e.CalculateMatch(1500, 1450, OutcomeWin, true, 0)
	assert.Equal(t, 6.0, scaled.KEff)
	assert.Less(t, scaled.ADelta, plain.ADelta)
	assert.Greater(t, scaled.BDelta, plain.BDelta)
}

func TestCalculateMatchSidesAreIndependent(t *testing.T) {
	// Rounding is applied per side; the deltas are not forced to mirror.
	e := NewEngine(DefaultConfig())
	calc := e.CalculateMatch(1403.17, 1399.84, OutcomeWin, false, 3)
	assert.Equal(t, 15.0, calc.KEff)
	assert.Equal(t, round2(calc.AOld+calc.KEff*(1-calc.ExpectedA)), calc.ANew)
	assert.Equal(t, round2(calc.BOld+calc.KEff*(0-calc.ExpectedB)), calc.BNew)
}

func TestOutcomeInverse(t *testing.T) {
	assert.Equal(t, OutcomeLose, OutcomeWin.Inverse())
	assert.Equal(t, OutcomeWin, OutcomeLose.Inverse())
	assert.Equal(t, OutcomeDraw, OutcomeDraw.Inverse())
}

func TestParseOutcome(t *testing.T) {
	for _, s := range []string{"win", "LOSE", " draw "} {
		_, err := ParseOutcome(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseOutcome("victory")
	assert.Error(t, err)
}

func TestInvalidOutcomePanics(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.Panics(t, func() {
		e.CalculateMatch(1400, 1400, Outcome("victory"), false, 0)
	})
}

func TestRound2HalfUp(t *testing.T) {
	assert.Equal(t, 0.38, round2(0.375))
	assert.Equal(t, 0.13, round2(0.125))
	assert.Equal(t, -0.12, round2(-0.125))
}
