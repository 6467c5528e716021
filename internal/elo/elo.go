package elo

import (
	"fmt"
	"math"
	"strings"
)

// Outcome is a reported match result from the reporter's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// ParseOutcome validates a textual outcome. Unknown values are the
// caller's bug and must be rejected at the boundary.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case OutcomeWin:
		return OutcomeWin, nil
	case OutcomeLose:
		return OutcomeLose, nil
	case OutcomeDraw:
		return OutcomeDraw, nil
	}
	return "", fmt.Errorf("invalid outcome: %q", s)
}

// Inverse returns the same match seen from the other side.
func (o Outcome) Inverse() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLose
	case OutcomeLose:
		return OutcomeWin
	case OutcomeDraw:
		return OutcomeDraw
	}
	panic(fmt.Sprintf("elo: invalid outcome %q", string(o)))
}

// score maps an outcome to the actual score used by the Elo formula.
func (o Outcome) score() float64 {
	switch o {
	case OutcomeWin:
		return 1.0
	case OutcomeLose:
		return 0.0
	case OutcomeDraw:
		return 0.5
	}
	panic(fmt.Sprintf("elo: invalid outcome %q", string(o)))
}

// Config holds the rating constants. Passed at construction so tests can
// override K or the tier table without touching package state.
type Config struct {
	InitialRating  float64
	KBase          float64
	Divisor        float64
	HandicapFactor float64
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		InitialRating:  1400,
		KBase:          20,
		Divisor:        400,
		HandicapFactor: 0.3,
	}
}

// Engine is a pure Elo calculator with head-to-head decay and handicap
// scaling. Safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Divisor <= 0 {
		cfg.Divisor = DefaultConfig().Divisor
	}
	return &Engine{cfg: cfg}
}

// Config returns the constants the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Expected returns the logistic expected score of A against B, in (0,1).
// Never rounded: rounding only applies to K and rating values.
func (e *Engine) Expected(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/e.cfg.Divisor))
}

// H2HMultiplier dampens rating movement between pairs with a lopsided
// head-to-head history. gap is the absolute win-minus-loss differential.
func (e *Engine) H2HMultiplier(gap int) float64 {
	switch {
	case gap <= 2:
		return 1.0
	case gap <= 4:
		return 0.75
	case gap <= 6:
		return 0.5
	default:
		return 0.25
	}
}

// HandicapMultiplier scales K down for handicap matches.
func (e *Engine) HandicapMultiplier(isHandicap bool) float64 {
	if isHandicap {
		return e.cfg.HandicapFactor
	}
	return 1.0
}

// EffectiveK is the base K scaled by the head-to-head and handicap
// multipliers, rounded to 2 decimals.
func (e *Engine) EffectiveK(isHandicap bool, gap int) float64 {
	return round2(e.cfg.KBase * e.H2HMultiplier(gap) * e.HandicapMultiplier(isHandicap))
}

// Apply returns the new rating after one match, rounded to 2 decimals.
func (e *Engine) Apply(current, expected, actual, kEff float64) float64 {
	return round2(current + kEff*(actual-expected))
}

// MatchCalc is the full result of a single rated match. Both sides are
// computed independently with the same effective K; the deltas are close
// to symmetric but not forced to be, because each side rounds separately.
type MatchCalc struct {
	AOld      float64 `json:"a_old"`
	ANew      float64 `json:"a_new"`
	ADelta    float64 `json:"a_delta"`
	BOld      float64 `json:"b_old"`
	BNew      float64 `json:"b_new"`
	BDelta    float64 `json:"b_delta"`
	KEff      float64 `json:"k_eff"`
	Gap       int     `json:"gap"`
	ExpectedA float64 `json:"expected_a"`
	ExpectedB float64 `json:"expected_b"`
}

// CalculateMatch computes both sides of a match. result is A's outcome;
// B is scored with the exact inverse. Panics on an invalid outcome, which
// can only reach here through a programming error.
func (e *Engine) CalculateMatch(ratingA, ratingB float64, result Outcome, isHandicap bool, gap int) MatchCalc {
	kEff := e.EffectiveK(isHandicap, gap)
	expA := e.Expected(ratingA, ratingB)
	expB := e.Expected(ratingB, ratingA)
	actualA := result.score()
	actualB := result.Inverse().score()

	aNew := e.Apply(ratingA, expA, actualA, kEff)
	bNew := e.Apply(ratingB, expB, actualB, kEff)

	return MatchCalc{
		AOld:      ratingA,
		ANew:      aNew,
		ADelta:    round2(aNew - ratingA),
		BOld:      ratingB,
		BNew:      bNew,
		BDelta:    round2(bNew - ratingB),
		KEff:      kEff,
		Gap:       gap,
		ExpectedA: expA,
		ExpectedB: expB,
	}
}

// round2 rounds half-up to 2 decimal digits (Math.round semantics: the
// .5 case always rounds toward positive infinity).
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
