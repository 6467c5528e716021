package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/elo-community/elo-rating-service/internal/msgcat"
)

type chanSink struct{ ch chan Intent }

func (s *chanSink) Deliver(i Intent) error {
	s.ch <- i
	return nil
}

func newTestEmitter(t *testing.T) (*Emitter, chan Intent) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	ch := make(chan Intent, 8)
	return NewEmitter(cat, &chanSink{ch: ch}), ch
}

func recv(t *testing.T, ch chan Intent) Intent {
	t.Helper()
	select {
	case i := <-ch:
		return i
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for intent")
		return Intent{}
	}
}

func TestMatchRequestedTargetsPartner(t *testing.T) {
	em, ch := newTestEmitter(t)
	em.MatchRequested("c1", "tennis", "alice", "bob", time.Now().Add(72*time.Hour))

	i := recv(t, ch)
	if i.Type != EventRequested || i.Target != "bob" || i.ClaimID != "c1" {
		t.Fatalf("unexpected intent: %+v", i)
	}
	if !strings.Contains(i.Message, "alice") {
		t.Fatalf("message should name the reporter: %q", i.Message)
	}
}

func TestMatchApprovedNotifiesBothSides(t *testing.T) {
	em, ch := newTestEmitter(t)
	em.MatchApproved("c2", "tennis", "alice", 15.19, "bob", -15.19)

	targets := map[string]bool{}
	for n := 0; n < 2; n++ {
		i := recv(t, ch)
		if i.Type != EventApproved {
			t.Fatalf("unexpected type: %s", i.Type)
		}
		targets[i.Target] = true
	}
	if !targets["alice"] || !targets["bob"] {
		t.Fatalf("expected intents for both sides, got %v", targets)
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	em := NewEmitter(cat, nil)
	em.MatchRejected("c3", "tennis", "alice", "bob")
}
