package h2h

import (
	"context"
	"errors"
	"testing"

	"github.com/elo-community/elo-rating-service/internal/domain"
	"github.com/elo-community/elo-rating-service/internal/elo"
)

type fakeSource struct {
	recs []domain.MatchRecord
	err  error
}

func (f *fakeSource) ListAcceptedBetween(_ context.Context, _, _, _ string, limit int) ([]domain.MatchRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.recs) {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

func rec(reporter, partner string, outcome elo.Outcome) domain.MatchRecord {
	return domain.MatchRecord{ReporterID: reporter, PartnerID: partner, Outcome: outcome, Category: "tennis"}
}

func TestGapForCountsWinsMinusLosses(t *testing.T) {
	src := &fakeSource{recs: []domain.MatchRecord{
		rec("alice", "bob", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
		rec("bob", "alice", elo.OutcomeWin), // a loss for alice
		rec("alice", "bob", elo.OutcomeDraw),
	}}
	agg := NewAggregator(src, 0)
	ctx := context.Background()

	gap, err := agg.GapFor(ctx, "alice", "bob", "tennis")
	if err != nil {
		t.Fatalf("GapFor: %v", err)
	}
	if gap != 1 {
		t.Fatalf("gap = %d, want 1", gap)
	}
}

func TestGapForIsSymmetric(t *testing.T) {
	src := &fakeSource{recs: []domain.MatchRecord{
		rec("alice", "bob", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
	}}
	agg := NewAggregator(src, 0)
	ctx := context.Background()

	ab, err := agg.GapFor(ctx, "alice", "bob", "tennis")
	if err != nil {
		t.Fatalf("GapFor(a,b): %v", err)
	}
	ba, err := agg.GapFor(ctx, "bob", "alice", "tennis")
	if err != nil {
		t.Fatalf("GapFor(b,a): %v", err)
	}
	if ab != ba || ab != 3 {
		t.Fatalf("gap not symmetric: ab=%d ba=%d", ab, ba)
	}
}

func TestGapForTrailingWindow(t *testing.T) {
	src := &fakeSource{recs: []domain.MatchRecord{
		// newest first, exactly how the repository returns them
		rec("bob", "alice", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
		rec("alice", "bob", elo.OutcomeWin),
	}}
	agg := NewAggregator(src, 2)
	ctx := context.Background()

	gap, err := agg.GapFor(ctx, "alice", "bob", "tennis")
	if err != nil {
		t.Fatalf("GapFor: %v", err)
	}
	if gap != 0 {
		t.Fatalf("windowed gap = %d, want 0", gap)
	}
}

func TestGapForPropagatesSourceError(t *testing.T) {
	agg := NewAggregator(&fakeSource{err: errors.New("boom")}, 0)
	if _, err := agg.GapFor(context.Background(), "a", "b", "tennis"); err == nil {
		t.Fatalf("expected source error")
	}
}
