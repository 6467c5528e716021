package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingTarget struct{ calls atomic.Int64 }

func (c *countingTarget) SweepExpired(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestSweeperRunsImmediatelyAndPeriodically(t *testing.T) {
	target := &countingTarget{}
	s := New(target, 10*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeps = %d, want >= 3", target.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweeperStopWaits(t *testing.T) {
	target := &countingTarget{}
	s := New(target, time.Hour)
	s.Start(context.Background())
	s.Stop()

	before := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if target.calls.Load() != before {
		t.Fatalf("sweeper kept running after Stop")
	}
}
