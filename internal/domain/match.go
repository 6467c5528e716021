package domain

import (
	"time"

	"github.com/elo-community/elo-rating-service/internal/elo"
)

// RatingProfile is one participant's standing in one sport category.
// Created lazily at first participation, mutated only by accepted claims.
type RatingProfile struct {
	ParticipantID string
	Category      string
	Rating        float64
	GamesPlayed   int
	Wins          int
	Losses        int
	Draws         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MatchRecord is the durable trace of a resolved match-result claim.
// Outcome is always from the reporter's perspective.
type MatchRecord struct {
	ClaimID       string
	Category      string
	ReporterID    string
	PartnerID     string
	Outcome       elo.Outcome
	Handicap      bool
	Status        string
	Method        string
	ReporterDelta float64
	PartnerDelta  float64
	PlayedAt      time.Time
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// WinnerID returns the id of the winning side, or "" for a draw.
func (m *MatchRecord) WinnerID() string {
	switch m.Outcome {
	case elo.OutcomeWin:
		return m.ReporterID
	case elo.OutcomeLose:
		return m.PartnerID
	}
	return ""
}
