package matchresult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elo-community/elo-rating-service/internal/config"
	"github.com/elo-community/elo-rating-service/internal/domain"
	"github.com/elo-community/elo-rating-service/internal/elo"
	"github.com/elo-community/elo-rating-service/internal/h2h"
	"github.com/elo-community/elo-rating-service/internal/metrics"
	"github.com/elo-community/elo-rating-service/internal/notify"
	"github.com/elo-community/elo-rating-service/internal/obslog"
)

const (
	// bounded retry budgets per spec'd conflict handling
	maxResolveAttempts = 3
	maxCommitAttempts  = 3
	commitRetryDelay   = 50 * time.Millisecond
)

// Options tune the workflow policy knobs.
type Options struct {
	ClaimWindow  time.Duration
	ExpiryPolicy config.ExpiryPolicy
}

// Manager runs the match-result confirmation state machine. Pending claims
// live in Redis; the WATCH-guarded transition out of PENDING is the
// exactly-once serialization point, so two racing resolvers cannot both
// mutate ratings. Terminal results and rating profiles persist through the
// Repository.
type Manager struct {
	rdb     *redis.Client
	store   *Store
	repo    Repository
	engine  *elo.Engine
	gap     *h2h.Aggregator
	emitter *notify.Emitter

	window time.Duration
	policy config.ExpiryPolicy
}

func NewManager(rdb *redis.Client, repo Repository, engine *elo.Engine, gap *h2h.Aggregator, emitter *notify.Emitter, opts Options) *Manager {
	window := opts.ClaimWindow
	if window <= 0 {
		window = 72 * time.Hour
	}
	policy := opts.ExpiryPolicy
	if policy == "" {
		policy = config.ExpirySilent
	}
	return &Manager{
		rdb:     rdb,
		store:   NewStore(rdb, window),
		repo:    repo,
		engine:  engine,
		gap:     gap,
		emitter: emitter,
		window:  window,
		policy:  policy,
	}
}

func validOutcome(o elo.Outcome) bool {
	switch o {
	case elo.OutcomeWin, elo.OutcomeLose, elo.OutcomeDraw:
		return true
	}
	return false
}

// Submit creates a pending claim and asks the partner to corroborate.
func (m *Manager) Submit(ctx context.Context, reporterID, partnerID, category string, result elo.Outcome, handicap bool, playedAt time.Time) (*Claim, error) {
	reporterID = strings.TrimSpace(reporterID)
	partnerID = strings.TrimSpace(partnerID)
	category = strings.TrimSpace(category)
	if reporterID == "" || partnerID == "" || category == "" {
		return nil, ErrInvalidArgs
	}
	if reporterID == partnerID {
		return nil, ErrSelfReport
	}
	if !validOutcome(result) {
		return nil, ErrInvalidResult
	}

	now := time.Now()
	if playedAt.IsZero() {
		playedAt = now
	}
	c := &Claim{
		ID:              "mr-" + uuid.NewString(),
		Category:        category,
		ReporterID:      reporterID,
		PartnerID:       partnerID,
		ReporterOutcome: result,
		Handicap:        handicap,
		PlayedAt:        playedAt,
		Status:          StatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.window),
	}
	if err := m.store.Save(ctx, c); err != nil {
		return nil, err
	}
	if err := m.store.Index(ctx, c); err != nil {
		return nil, err
	}

	metrics.ClaimsSubmitted.Inc()
	metrics.PendingClaims.Inc()
	obslog.L().Info("claim_submit",
		zap.String("claim_id", c.ID),
		zap.String("category", c.Category),
		zap.String("reporter_id", c.ReporterID),
		zap.String("partner_id", c.PartnerID),
		zap.String("result", string(c.ReporterOutcome)),
		zap.Bool("handicap", c.Handicap),
		zap.Time("expires_at", c.ExpiresAt),
	)
	m.emitter.MatchRequested(c.ID, c.Category, c.ReporterID, c.PartnerID, c.ExpiresAt)
	return c, nil
}

// Corroborate applies the partner's answer to a pending claim. The exact
// logical inverse of the reporter's outcome accepts the claim and commits
// the rating change; anything else rejects it with no rating effect.
func (m *Manager) Corroborate(ctx context.Context, claimID, partnerID string, outcome elo.Outcome) (*Claim, error) {
	claimID = strings.TrimSpace(claimID)
	partnerID = strings.TrimSpace(partnerID)
	if claimID == "" || partnerID == "" {
		return nil, ErrInvalidArgs
	}
	if !validOutcome(outcome) {
		return nil, ErrInvalidResult
	}

	var (
		resolved *Claim
		changes  []RatingChange
	)
	key := m.store.keyClaim(claimID)
	err := m.withConflictRetry(ctx, func() error {
		return m.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := loadWatched(ctx, tx, key)
			if err != nil {
				return err
			}
			if cur.Status != StatusPending {
				return ErrInvalidStateTransition
			}
			if cur.PartnerID != partnerID {
				return ErrNotParticipant
			}
			now := time.Now()
			if now.After(cur.ExpiresAt) {
				// past the deadline the sweep owns this claim
				return ErrInvalidStateTransition
			}

			changes = nil
			if outcome == cur.ReporterOutcome.Inverse() {
				changes, err = m.applyAcceptance(ctx, cur)
				if err != nil {
					return err
				}
				cur.Status = StatusAccepted
				cur.Method = MethodCorroborated
			} else {
				cur.Status = StatusRejected
				cur.Method = MethodContradicted
			}
			cur.PartnerOutcome = outcome
			cur.ResolvedAt = now
			if err := m.commitTransition(ctx, tx, cur); err != nil {
				return err
			}
			resolved = cur
			return nil
		}, key)
	})
	if err != nil {
		return nil, err
	}

	if err := m.persistResolution(ctx, resolved, changes); err != nil {
		return resolved, err
	}
	m.afterResolution(resolved)
	return resolved, nil
}

// Expire transitions a pending claim past its deadline. Expiring an
// already-EXPIRED claim is a no-op that returns the terminal claim.
func (m *Manager) Expire(ctx context.Context, claimID string) (*Claim, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil, ErrInvalidArgs
	}

	var (
		resolved        *Claim
		changes         []RatingChange
		alreadyTerminal bool
	)
	key := m.store.keyClaim(claimID)
	err := m.withConflictRetry(ctx, func() error {
		return m.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := loadWatched(ctx, tx, key)
			if err != nil {
				return err
			}
			if cur.Status == StatusExpired {
				resolved = cur
				alreadyTerminal = true
				return nil
			}
			if cur.Status != StatusPending {
				return ErrInvalidStateTransition
			}
			now := time.Now()
			if now.Before(cur.ExpiresAt) {
				return ErrDeadlineNotReached
			}

			changes = nil
			alreadyTerminal = false
			if m.policy == config.ExpiryAccept {
				// default-accept the reporter's claimed outcome
				changes, err = m.applyAcceptance(ctx, cur)
				if err != nil {
					return err
				}
				cur.Status = StatusAccepted
				cur.Method = MethodTimeout
			} else {
				cur.Status = StatusExpired
				cur.Method = MethodExpired
			}
			cur.ResolvedAt = now
			if err := m.commitTransition(ctx, tx, cur); err != nil {
				return err
			}
			resolved = cur
			return nil
		}, key)
	})
	if err != nil {
		return nil, err
	}
	if alreadyTerminal {
		return resolved, nil
	}

	if err := m.persistResolution(ctx, resolved, changes); err != nil {
		return resolved, err
	}
	m.afterResolution(resolved)
	return resolved, nil
}

// SweepExpired expires every pending claim past its deadline. Losing a
// per-claim race to another sweeper or a concurrent corroboration is not
// an error. Returns the number of claims this call transitioned.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	ids, err := m.store.PendingIDs(ctx)
	if err != nil {
		return 0, err
	}
	swept := 0
	now := time.Now()
	for _, id := range ids {
		c, err := m.store.Load(ctx, id)
		if err != nil {
			obslog.L().Warn("sweep_load_error", zap.String("claim_id", id), zap.Error(err))
			continue
		}
		if c == nil || c.Status.Terminal() {
			// index entry outlived the claim or its resolution
			_ = m.store.RemovePending(ctx, id)
			continue
		}
		if now.Before(c.ExpiresAt) {
			continue
		}
		if _, err := m.Expire(ctx, id); err != nil {
			if errors.Is(err, ErrInvalidStateTransition) || errors.Is(err, ErrDeadlineNotReached) || errors.Is(err, ErrNotFound) {
				continue
			}
			obslog.L().Warn("sweep_expire_error", zap.String("claim_id", id), zap.Error(err))
			continue
		}
		swept++
	}
	if n, err := m.store.PendingCount(ctx); err == nil {
		metrics.PendingClaims.Set(float64(n))
	}
	return swept, nil
}

// Get returns the live claim, falling back to the durable record once the
// Redis key has aged out.
func (m *Manager) Get(ctx context.Context, claimID string) (*Claim, error) {
	c, err := m.store.Load(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	rec, err := m.repo.GetRecord(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return claimFromRecord(rec), nil
}

// ClaimsByParticipant lists a participant's live claims, newest first.
func (m *Manager) ClaimsByParticipant(ctx context.Context, participantID string) ([]*Claim, error) {
	return m.store.ClaimsByUser(ctx, participantID)
}

// ProfileFor returns the stored profile, or a fresh one at the initial
// rating when the participant has not played in the category yet.
func (m *Manager) ProfileFor(ctx context.Context, participantID, category string) (*domain.RatingProfile, error) {
	p, err := m.repo.GetProfile(ctx, participantID, category)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &domain.RatingProfile{
			ParticipantID: participantID,
			Category:      category,
			Rating:        m.engine.Config().InitialRating,
		}
	}
	return p, nil
}

// applyAcceptance computes the rating movement for a claim about to be
// accepted. The head-to-head gap is read before the claim itself commits,
// so a claim never counts toward its own K-factor.
func (m *Manager) applyAcceptance(ctx context.Context, cur *Claim) ([]RatingChange, error) {
	gap, err := m.gap.GapFor(ctx, cur.ReporterID, cur.PartnerID, cur.Category)
	if err != nil {
		return nil, err
	}
	reporterRating, err := m.ratingOrInitial(ctx, cur.ReporterID, cur.Category)
	if err != nil {
		return nil, err
	}
	partnerRating, err := m.ratingOrInitial(ctx, cur.PartnerID, cur.Category)
	if err != nil {
		return nil, err
	}

	calc := m.engine.CalculateMatch(reporterRating, partnerRating, cur.ReporterOutcome, cur.Handicap, gap)
	cur.ReporterDelta = calc.ADelta
	cur.PartnerDelta = calc.BDelta
	cur.KEff = calc.KEff
	cur.Gap = calc.Gap

	return []RatingChange{
		{ParticipantID: cur.ReporterID, Category: cur.Category, OldRating: calc.AOld, NewRating: calc.ANew, Outcome: cur.ReporterOutcome},
		{ParticipantID: cur.PartnerID, Category: cur.Category, OldRating: calc.BOld, NewRating: calc.BNew, Outcome: cur.ReporterOutcome.Inverse()},
	}, nil
}

func (m *Manager) ratingOrInitial(ctx context.Context, participantID, category string) (float64, error) {
	p, err := m.repo.GetProfile(ctx, participantID, category)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return m.engine.Config().InitialRating, nil
	}
	return p.Rating, nil
}

// commitTransition writes the terminal claim and drops it from the sweep
// set, inside the caller's WATCH.
func (m *Manager) commitTransition(ctx context.Context, tx *redis.Tx, cur *Claim) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	pipe := tx.TxPipeline()
	pipe.Set(ctx, m.store.keyClaim(cur.ID), raw, m.store.ttl)
	pipe.SRem(ctx, m.store.keyPending(), cur.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// withConflictRetry re-runs the read-compute-write cycle after an
// optimistic-concurrency failure, a bounded number of times.
func (m *Manager) withConflictRetry(ctx context.Context, attempt func() error) error {
	for i := 0; i < maxResolveAttempts; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			metrics.StoreRetries.Inc()
			continue
		}
		if errors.Is(err, ErrInvalidStateTransition) {
			metrics.ClaimConflicts.Inc()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return ErrStoreConflict
}

// persistResolution pushes the terminal record (and any rating changes)
// into the repository. The commit is idempotent by claim id, so retries
// can never double-apply a rating.
func (m *Manager) persistResolution(ctx context.Context, cur *Claim, changes []RatingChange) error {
	rec := recordFromClaim(cur)
	var err error
	for i := 0; i < maxCommitAttempts; i++ {
		if err = m.repo.CommitResolution(ctx, rec, changes); err == nil {
			return nil
		}
		metrics.StoreRetries.Inc()
		time.Sleep(commitRetryDelay)
	}
	obslog.L().Error("claim_persist_error",
		zap.String("claim_id", cur.ID),
		zap.String("status", string(cur.Status)),
		zap.Error(err),
	)
	return fmt.Errorf("%w: persist claim %s: %v", ErrStoreConflict, cur.ID, err)
}

func (m *Manager) afterResolution(cur *Claim) {
	metrics.PendingClaims.Dec()
	metrics.ObserveResolution(string(cur.Status), cur.Method, cur.CreatedAt)
	obslog.L().Info("claim_resolve",
		zap.String("claim_id", cur.ID),
		zap.String("status", string(cur.Status)),
		zap.String("method", cur.Method),
		zap.Float64("reporter_delta", cur.ReporterDelta),
		zap.Float64("partner_delta", cur.PartnerDelta),
		zap.Int("gap", cur.Gap),
	)
	switch cur.Status {
	case StatusAccepted:
		m.emitter.MatchApproved(cur.ID, cur.Category, cur.ReporterID, cur.ReporterDelta, cur.PartnerID, cur.PartnerDelta)
	case StatusRejected:
		m.emitter.MatchRejected(cur.ID, cur.Category, cur.ReporterID, cur.PartnerID)
	case StatusExpired:
		m.emitter.MatchExpired(cur.ID, cur.Category, cur.ReporterID)
	}
}

func loadWatched(ctx context.Context, tx *redis.Tx, key string) (*Claim, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func recordFromClaim(c *Claim) *domain.MatchRecord {
	return &domain.MatchRecord{
		ClaimID:       c.ID,
		Category:      c.Category,
		ReporterID:    c.ReporterID,
		PartnerID:     c.PartnerID,
		Outcome:       c.ReporterOutcome,
		Handicap:      c.Handicap,
		Status:        string(c.Status),
		Method:        c.Method,
		ReporterDelta: c.ReporterDelta,
		PartnerDelta:  c.PartnerDelta,
		PlayedAt:      c.PlayedAt,
		CreatedAt:     c.CreatedAt,
		ResolvedAt:    c.ResolvedAt,
	}
}

func claimFromRecord(rec *domain.MatchRecord) *Claim {
	c := &Claim{
		ID:              rec.ClaimID,
		Category:        rec.Category,
		ReporterID:      rec.ReporterID,
		PartnerID:       rec.PartnerID,
		ReporterOutcome: rec.Outcome,
		Handicap:        rec.Handicap,
		Status:          Status(rec.Status),
		Method:          rec.Method,
		ReporterDelta:   rec.ReporterDelta,
		PartnerDelta:    rec.PartnerDelta,
		PlayedAt:        rec.PlayedAt,
		CreatedAt:       rec.CreatedAt,
		ResolvedAt:      rec.ResolvedAt,
	}
	if c.Status == StatusAccepted && rec.Method == MethodCorroborated {
		c.PartnerOutcome = rec.Outcome.Inverse()
	}
	return c
}
