package matchresult

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/elo-community/elo-rating-service/internal/domain"
	"github.com/elo-community/elo-rating-service/internal/elo"
)

// RatingChange is one participant's rating mutation within a resolution.
// Outcome is from this participant's own perspective and drives the
// win/loss/draw counters.
type RatingChange struct {
	ParticipantID string
	Category      string
	OldRating     float64
	NewRating     float64
	Outcome       elo.Outcome
}

// Repository persists rating profiles and resolved match records. The
// rating commit and the match record land in one transaction, keyed by
// claim id, so re-running a commit is a no-op.
type Repository interface {
	// GetProfile returns nil when the participant has no profile yet.
	GetProfile(ctx context.Context, participantID, category string) (*domain.RatingProfile, error)
	// CommitResolution stores the terminal record and applies the rating
	// changes atomically. Committing the same claim id twice is a no-op.
	CommitResolution(ctx context.Context, rec *domain.MatchRecord, changes []RatingChange) error
	// ListAcceptedBetween returns accepted records between the pair in
	// the category, newest first, limited to limit when limit > 0.
	ListAcceptedBetween(ctx context.Context, a, b, category string, limit int) ([]domain.MatchRecord, error)
	// GetRecord returns nil when no resolved record exists for the id.
	GetRecord(ctx context.Context, claimID string) (*domain.MatchRecord, error)
	Close() error
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository opens a Postgres-backed repository.
func NewRepository(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	repo := &sqlRepository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func (r *sqlRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ensureSchema creates the two tables when they do not exist yet.
func (r *sqlRepository) ensureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ratings (
		participant_id TEXT NOT NULL,
		category       TEXT NOT NULL,
		rating         DOUBLE PRECISION NOT NULL,
		games_played   INTEGER NOT NULL DEFAULT 0,
		wins           INTEGER NOT NULL DEFAULT 0,
		losses         INTEGER NOT NULL DEFAULT 0,
		draws          INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (participant_id, category)
	);
	CREATE TABLE IF NOT EXISTS match_results (
		claim_id       TEXT PRIMARY KEY,
		category       TEXT NOT NULL,
		reporter_id    TEXT NOT NULL,
		partner_id     TEXT NOT NULL,
		outcome        TEXT NOT NULL,
		handicap       BOOLEAN NOT NULL DEFAULT FALSE,
		status         TEXT NOT NULL,
		method         TEXT NOT NULL,
		reporter_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
		partner_delta  DOUBLE PRECISION NOT NULL DEFAULT 0,
		played_at      TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		resolved_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_match_results_pair
		ON match_results (category, reporter_id, partner_id);`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *sqlRepository) GetProfile(ctx context.Context, participantID, category string) (*domain.RatingProfile, error) {
	const q = `
		SELECT participant_id, category, rating, games_played, wins, losses, draws, created_at, updated_at
		FROM ratings WHERE participant_id = $1 AND category = $2`
	var p domain.RatingProfile
	err := r.db.QueryRowContext(ctx, q, participantID, category).Scan(
		&p.ParticipantID, &p.Category, &p.Rating, &p.GamesPlayed,
		&p.Wins, &p.Losses, &p.Draws, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqlRepository) CommitResolution(ctx context.Context, rec *domain.MatchRecord, changes []RatingChange) error {
	if rec == nil {
		return errors.New("nil match record")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
		INSERT INTO match_results (
			claim_id, category, reporter_id, partner_id, outcome, handicap,
			status, method, reporter_delta, partner_delta,
			played_at, created_at, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (claim_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insert,
		rec.ClaimID, rec.Category, rec.ReporterID, rec.PartnerID,
		string(rec.Outcome), rec.Handicap, rec.Status, rec.Method,
		rec.ReporterDelta, rec.PartnerDelta,
		rec.PlayedAt, rec.CreatedAt, rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match record: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		// Claim already committed by an earlier attempt; the rating
		// mutation went with it.
		return nil
	}

	const upsert = `
		INSERT INTO ratings (
			participant_id, category, rating, games_played, wins, losses, draws, created_at, updated_at
		) VALUES ($1,$2,$3,1,$4,$5,$6,now(),now())
		ON CONFLICT (participant_id, category) DO UPDATE SET
			rating       = EXCLUDED.rating,
			games_played = ratings.games_played + 1,
			wins         = ratings.wins + EXCLUDED.wins,
			losses       = ratings.losses + EXCLUDED.losses,
			draws        = ratings.draws + EXCLUDED.draws,
			updated_at   = now()`
	for _, ch := range changes {
		wins, losses, draws := outcomeCounters(ch.Outcome)
		if _, err := tx.ExecContext(ctx, upsert,
			ch.ParticipantID, ch.Category, ch.NewRating, wins, losses, draws,
		); err != nil {
			return fmt.Errorf("upsert rating for %s: %w", ch.ParticipantID, err)
		}
	}
	return tx.Commit()
}

func (r *sqlRepository) ListAcceptedBetween(ctx context.Context, a, b, category string, limit int) ([]domain.MatchRecord, error) {
	q := `
		SELECT claim_id, category, reporter_id, partner_id, outcome, handicap,
		       status, method, reporter_delta, partner_delta,
		       played_at, created_at, resolved_at
		FROM match_results
		WHERE status = 'ACCEPTED' AND category = $3
		  AND ((reporter_id = $1 AND partner_id = $2) OR (reporter_id = $2 AND partner_id = $1))
		ORDER BY played_at DESC`
	args := []any{a, b, category}
	if limit > 0 {
		q += " LIMIT $4"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *sqlRepository) GetRecord(ctx context.Context, claimID string) (*domain.MatchRecord, error) {
	const q = `
		SELECT claim_id, category, reporter_id, partner_id, outcome, handicap,
		       status, method, reporter_delta, partner_delta,
		       played_at, created_at, resolved_at
		FROM match_results WHERE claim_id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, claimID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func scanRecord(scan func(dest ...any) error) (*domain.MatchRecord, error) {
	var rec domain.MatchRecord
	var outcome string
	err := scan(
		&rec.ClaimID, &rec.Category, &rec.ReporterID, &rec.PartnerID,
		&outcome, &rec.Handicap, &rec.Status, &rec.Method,
		&rec.ReporterDelta, &rec.PartnerDelta,
		&rec.PlayedAt, &rec.CreatedAt, &rec.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Outcome = elo.Outcome(outcome)
	return &rec, nil
}

func outcomeCounters(o elo.Outcome) (wins, losses, draws int) {
	switch o {
	case elo.OutcomeWin:
		return 1, 0, 0
	case elo.OutcomeLose:
		return 0, 1, 0
	default:
		return 0, 0, 1
	}
}
