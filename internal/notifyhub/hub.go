// Package notifyhub delivers notification intents to live websocket
// connections. It is the pluggable sink behind the workflow's emitter:
// a participant without a connection simply misses the push, claim state
// is never affected.
package notifyhub

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/elo-community/elo-rating-service/internal/notify"
	"github.com/elo-community/elo-rating-service/internal/obslog"
)

const deliverTimeout = 5 * time.Second

// Hub is a live-connection registry keyed by participant id. One
// participant may hold several connections (multiple devices); an intent
// fans out to all of them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}

	server *http.Server
}

func NewHub(addr string) *Hub {
	h := &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	h.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return h
}

// Start serves the hub listener until Shutdown.
func (h *Hub) Start() {
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Error("notifyhub_listen_error", zap.Error(err))
		}
	}()
}

func (h *Hub) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Deliver implements notify.Sink. Returns an error when the target has no
// live connection so the caller can count the drop.
func (h *Hub) Deliver(intent notify.Intent) error {
	h.mu.RLock()
	set := h.conns[intent.Target]
	targets := make([]*websocket.Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return errors.New("no live connection for participant")
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	var lastErr error
	delivered := 0
	for _, c := range targets {
		if err := wsjson.Write(ctx, c, intent); err != nil {
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	participant := strings.TrimSpace(r.URL.Query().Get("participant"))
	if participant == "" {
		http.Error(w, "participant query parameter required", http.StatusBadRequest)
		return
	}
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		obslog.L().Warn("notifyhub_accept_error", zap.String("participant", participant), zap.Error(err))
		return
	}
	h.register(participant, c)
	obslog.L().Info("notifyhub_register", zap.String("participant", participant))
	defer func() {
		h.unregister(participant, c)
		_ = c.CloseNow()
		obslog.L().Info("notifyhub_unregister", zap.String("participant", participant))
	}()

	// Read loop: clients only listen, but draining keeps control frames
	// flowing and detects the close.
	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) register(participant string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[participant]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[participant] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(participant string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[participant]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, participant)
	}
}

// LiveCount reports connected participants. Used by tests and the health
// endpoint of the API server.
func (h *Hub) LiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
