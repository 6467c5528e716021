package matchresult

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/elo-community/elo-rating-service/internal/domain"
)

// memrepo is an in-memory Repository used when no DATABASE_URL is
// configured, and by tests. Same commit-once semantics as the SQL
// implementation.
type memrepo struct {
	mu sync.RWMutex

	profiles map[string]*domain.RatingProfile // participant|category
	records  map[string]*domain.MatchRecord   // claim id
	ordered  []*domain.MatchRecord            // append order
}

func NewMemoryRepository() Repository {
	return &memrepo{
		profiles: make(map[string]*domain.RatingProfile),
		records:  make(map[string]*domain.MatchRecord),
	}
}

func profileKey(participantID, category string) string {
	return participantID + "|" + category
}

func (m *memrepo) GetProfile(_ context.Context, participantID, category string) (*domain.RatingProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileKey(participantID, category)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memrepo) CommitResolution(_ context.Context, rec *domain.MatchRecord, changes []RatingChange) error {
	if rec == nil {
		return errors.New("nil match record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ClaimID]; exists {
		return nil
	}
	cp := *rec
	m.records[rec.ClaimID] = &cp
	m.ordered = append(m.ordered, &cp)

	now := time.Now()
	for _, ch := range changes {
		key := profileKey(ch.ParticipantID, ch.Category)
		p, ok := m.profiles[key]
		if !ok {
			p = &domain.RatingProfile{
				ParticipantID: ch.ParticipantID,
				Category:      ch.Category,
				CreatedAt:     now,
			}
			m.profiles[key] = p
		}
		p.Rating = ch.NewRating
		p.GamesPlayed++
		wins, losses, draws := outcomeCounters(ch.Outcome)
		p.Wins += wins
		p.Losses += losses
		p.Draws += draws
		p.UpdatedAt = now
	}
	return nil
}

func (m *memrepo) ListAcceptedBetween(_ context.Context, a, b, category string, limit int) ([]domain.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.MatchRecord
	for _, rec := range m.ordered {
		if rec.Status != string(StatusAccepted) || rec.Category != category {
			continue
		}
		pair := (rec.ReporterID == a && rec.PartnerID == b) || (rec.ReporterID == b && rec.PartnerID == a)
		if !pair {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayedAt.After(out[j].PlayedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memrepo) GetRecord(_ context.Context, claimID string) (*domain.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[claimID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memrepo) Close() error { return nil }
