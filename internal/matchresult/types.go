package matchresult

import (
	"errors"
	"time"

	"github.com/elo-community/elo-rating-service/internal/elo"
)

// Status represents the claim lifecycle. PENDING is the only non-terminal
// state; a claim leaves it exactly once.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

// Resolution methods recorded on terminal claims.
const (
	MethodCorroborated = "corroborated"
	MethodContradicted = "contradicted"
	MethodTimeout      = "timeout"
	MethodExpired      = "expired"
)

// Claim is a reported match result awaiting corroboration. Stored as JSON
// in Redis under claim:<id>. ReporterOutcome is the reporter's perspective
// and stays canonical; the partner's view is its inverse.
type Claim struct {
	ID              string      `json:"id"`
	Category        string      `json:"category"`
	ReporterID      string      `json:"reporter_id"`
	PartnerID       string      `json:"partner_id"`
	ReporterOutcome elo.Outcome `json:"reporter_outcome"`
	Handicap        bool        `json:"handicap"`
	PlayedAt        time.Time   `json:"played_at"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Set only on resolution.
	PartnerOutcome elo.Outcome `json:"partner_outcome,omitempty"`
	ResolvedAt     time.Time   `json:"resolved_at"`
	Method         string      `json:"method,omitempty"`

	// Rating outcome, set only on ACCEPTED.
	ReporterDelta float64 `json:"reporter_delta,omitempty"`
	PartnerDelta  float64 `json:"partner_delta,omitempty"`
	KEff          float64 `json:"k_eff,omitempty"`
	Gap           int     `json:"gap,omitempty"`
}

var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrInvalidResult  = errors.New("invalid result value")
	ErrSelfReport     = errors.New("cannot report a match against yourself")
	ErrNotFound       = errors.New("claim not found")
	ErrNotParticipant = errors.New("caller is not the claim partner")

	// ErrInvalidStateTransition means the claim is no longer pending:
	// someone else resolved it first, or the deadline already passed.
	// A conflict for the caller, never retried automatically.
	ErrInvalidStateTransition = errors.New("claim is not pending")

	// ErrDeadlineNotReached guards Expire against premature sweeps.
	ErrDeadlineNotReached = errors.New("claim deadline not reached")

	// ErrStoreConflict surfaces after the bounded retry budget for the
	// read-compute-write cycle is exhausted.
	ErrStoreConflict = errors.New("store conflict, retry later")
)
