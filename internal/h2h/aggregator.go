package h2h

import (
	"context"

	"github.com/elo-community/elo-rating-service/internal/domain"
)

// HistorySource is the read-only slice of match history the aggregator
// needs. Implementations must return only claims that reached ACCEPTED,
// newest first when limited.
type HistorySource interface {
	ListAcceptedBetween(ctx context.Context, a, b, category string, limit int) ([]domain.MatchRecord, error)
}

// Aggregator computes the head-to-head gap between two participants in a
// category. Read path only.
type Aggregator struct {
	src HistorySource
	// window limits the gap to the trailing N accepted results; 0 means
	// the whole shared history counts.
	window int
}

func NewAggregator(src HistorySource, window int) *Aggregator {
	if window < 0 {
		window = 0
	}
	return &Aggregator{src: src, window: window}
}

// GapFor returns abs(wins of a over b - losses of a to b). Symmetric in
// argument order by construction; draws do not move the gap.
func (g *Aggregator) GapFor(ctx context.Context, a, b, category string) (int, error) {
	recs, err := g.src.ListAcceptedBetween(ctx, a, b, category, g.window)
	if err != nil {
		return 0, err
	}
	wins, losses := 0, 0
	for i := range recs {
		switch recs[i].WinnerID() {
		case a:
			wins++
		case b:
			losses++
		}
	}
	gap := wins - losses
	if gap < 0 {
		gap = -gap
	}
	return gap, nil
}
