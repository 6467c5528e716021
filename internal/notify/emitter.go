package notify

import (
	"time"

	"github.com/elo-community/elo-rating-service/internal/metrics"
	"github.com/elo-community/elo-rating-service/internal/msgcat"
	"github.com/elo-community/elo-rating-service/internal/obslog"
	"go.uber.org/zap"
)

// Event names a workflow transition worth telling a participant about.
type Event string

const (
	EventRequested Event = "match_result_requested"
	EventApproved  Event = "match_result_approved"
	EventRejected  Event = "match_result_rejected"
	EventExpired   Event = "match_result_expired"
)

// Intent is a notification payload addressed to one participant.
// Delivery transport is the sink's problem.
type Intent struct {
	Type      Event     `json:"type"`
	Target    string    `json:"target"`
	ClaimID   string    `json:"claim_id"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives intents. Implementations must tolerate being called from
// many goroutines; a failed delivery is dropped, never retried.
type Sink interface {
	Deliver(intent Intent) error
}

// Emitter translates workflow events into notification intents.
// Dispatch is fire-and-forget so a slow or dead sink can never hold up a
// claim resolution.
type Emitter struct {
	cat  *msgcat.Catalog
	sink Sink
}

func NewEmitter(cat *msgcat.Catalog, sink Sink) *Emitter {
	return &Emitter{cat: cat, sink: sink}
}

func (e *Emitter) MatchRequested(claimID, category, reporterID, partnerID string, deadline time.Time) {
	msg := e.render("match.requested", map[string]any{
		"Reporter": reporterID,
		"Category": category,
		"Deadline": deadline.UTC().Format("2006-01-02 15:04 MST"),
	})
	e.dispatch(Intent{Type: EventRequested, Target: partnerID, ClaimID: claimID, Category: category, Message: msg, Timestamp: time.Now()})
}

func (e *Emitter) MatchApproved(claimID, category, reporterID string, reporterDelta float64, partnerID string, partnerDelta float64) {
	for _, p := range []struct {
		id    string
		delta float64
	}{{reporterID, reporterDelta}, {partnerID, partnerDelta}} {
		msg := e.render("match.approved", map[string]any{
			"Category": category,
			"Delta":    p.delta,
		})
		e.dispatch(Intent{Type: EventApproved, Target: p.id, ClaimID: claimID, Category: category, Message: msg, Timestamp: time.Now()})
	}
}

func (e *Emitter) MatchRejected(claimID, category, reporterID, partnerID string) {
	msg := e.render("match.rejected", map[string]any{"Category": category})
	for _, id := range []string{reporterID, partnerID} {
		e.dispatch(Intent{Type: EventRejected, Target: id, ClaimID: claimID, Category: category, Message: msg, Timestamp: time.Now()})
	}
}

func (e *Emitter) MatchExpired(claimID, category, reporterID string) {
	msg := e.render("match.expired", map[string]any{"Category": category})
	e.dispatch(Intent{Type: EventExpired, Target: reporterID, ClaimID: claimID, Category: category, Message: msg, Timestamp: time.Now()})
}

func (e *Emitter) render(key string, data map[string]any) string {
	if e == nil || e.cat == nil {
		return ""
	}
	msg, err := e.cat.Render(key, data)
	if err != nil {
		obslog.L().Warn("notify_render_error", zap.String("template", key), zap.Error(err))
		return ""
	}
	return msg
}

func (e *Emitter) dispatch(intent Intent) {
	if e == nil || e.sink == nil {
		return
	}
	go func() {
		if err := e.sink.Deliver(intent); err != nil {
			metrics.NotificationsDropped.Inc()
			obslog.L().Warn("notify_drop",
				zap.String("type", string(intent.Type)),
				zap.String("target", intent.Target),
				zap.String("claim_id", intent.ClaimID),
				zap.Error(err),
			)
		}
	}()
}
