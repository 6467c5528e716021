package notifyhub

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/elo-community/elo-rating-service/internal/notify"
)

func TestDeliverToConnectedParticipant(t *testing.T) {
	h := NewHub(":0")
	srv := httptest.NewServer(h.server.Handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, srv.URL+"/ws?participant=bob", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.CloseNow()

	// registration is part of the handshake handler; wait for it
	deadline := time.Now().Add(2 * time.Second)
	for h.LiveCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := notify.Intent{Type: notify.EventApproved, Target: "bob", ClaimID: "c1", Category: "tennis", Message: "confirmed"}
	if err := h.Deliver(want); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	var got notify.Intent
	if err := wsjson.Read(ctx, c, &got); err != nil {
		t.Fatalf("read intent: %v", err)
	}
	if got.ClaimID != want.ClaimID || got.Type != want.Type {
		t.Fatalf("intent = %+v, want %+v", got, want)
	}
}

func TestDeliverWithoutConnectionFails(t *testing.T) {
	h := NewHub(":0")
	if err := h.Deliver(notify.Intent{Target: "ghost"}); err == nil {
		t.Fatalf("expected delivery error for unknown participant")
	}
}

func TestWSRequiresParticipant(t *testing.T) {
	h := NewHub(":0")
	srv := httptest.NewServer(h.server.Handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := websocket.Dial(ctx, srv.URL+"/ws", nil); err == nil {
		t.Fatalf("expected handshake failure without participant id")
	}
}
