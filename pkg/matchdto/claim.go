package matchdto

import "time"

// Claim is the external view of a match-result claim.
type Claim struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	ReporterID      string    `json:"reporter_id"`
	PartnerID       string    `json:"partner_id"`
	ReporterOutcome string    `json:"reporter_outcome"`
	Handicap        bool      `json:"handicap"`
	PlayedAt        time.Time `json:"played_at"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`

	PartnerOutcome string     `json:"partner_outcome,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Method         string     `json:"method,omitempty"`
	ReporterDelta  float64    `json:"reporter_delta,omitempty"`
	PartnerDelta   float64    `json:"partner_delta,omitempty"`
	KEff           float64    `json:"k_eff,omitempty"`
	Gap            int        `json:"gap,omitempty"`
}

// SubmitRequest reports a played match from the reporter's perspective.
type SubmitRequest struct {
	ReporterID string     `json:"reporter_id"`
	PartnerID  string     `json:"partner_id"`
	Category   string     `json:"category"`
	Result     string     `json:"result"`
	Handicap   bool       `json:"handicap"`
	PlayedAt   *time.Time `json:"played_at,omitempty"`
}

// CorroborateRequest is the partner's answer to a pending claim.
type CorroborateRequest struct {
	PartnerID string `json:"partner_id"`
	Result    string `json:"result"`
}

type ClaimResponse struct {
	Claim *Claim `json:"claim"`
}

type ClaimListResponse struct {
	Claims []*Claim `json:"claims"`
}

type H2HResponse struct {
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`
	Category     string `json:"category"`
	Gap          int    `json:"gap"`
}
