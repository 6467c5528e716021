// Package sweeper drives the periodic expiry of stale pending claims.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elo-community/elo-rating-service/internal/obslog"
)

// Sweepable is the slice of the workflow the sweeper needs.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper invokes the expiry sweep on a fixed interval until stopped.
// Deadlines belong to the claims themselves; the interval only bounds how
// stale an expired-but-unswept claim can get.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(target Sweepable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{target: target, interval: interval}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// catches up without waiting a full interval.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		obslog.L().Warn("sweep_error", zap.Error(err))
		return
	}
	if n > 0 {
		obslog.L().Info("sweep_done", zap.Int("expired", n))
	}
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}
