package matchresult

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps live claims in Redis. Claims are small JSON blobs with a TTL
// comfortably past the corroboration deadline; resolved claims survive in
// the SQL repository after the keys age out.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, claimWindow time.Duration) *Store {
	// keep terminal claims readable for a week after the window closes
	return &Store{rdb: rdb, ttl: claimWindow + 7*24*time.Hour}
}

func (s *Store) keyClaim(id string) string    { return "claim:" + strings.TrimSpace(id) }
func (s *Store) keyPending() string           { return "claim:pending" }
func (s *Store) keyUserIdx(user string) string { return "claim:index:user:" + strings.TrimSpace(user) }

func (s *Store) Save(ctx context.Context, c *Claim) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyClaim(c.ID), raw, s.ttl).Err()
}

func (s *Store) Load(ctx context.Context, id string) (*Claim, error) {
	raw, err := s.rdb.Get(ctx, s.keyClaim(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Index registers a freshly created claim in the pending sweep set and in
// per-participant indexes.
func (s *Store) Index(ctx context.Context, c *Claim) error {
	if err := s.rdb.SAdd(ctx, s.keyPending(), c.ID).Err(); err != nil {
		return err
	}
	for _, user := range []string{c.ReporterID, c.PartnerID} {
		if strings.TrimSpace(user) == "" {
			continue
		}
		key := s.keyUserIdx(user)
		if err := s.rdb.SAdd(ctx, key, c.ID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, key, s.ttl).Err()
	}
	return nil
}

// RemovePending drops a claim id from the sweep set. Safe to call for ids
// that are already gone.
func (s *Store) RemovePending(ctx context.Context, id string) error {
	return s.rdb.SRem(ctx, s.keyPending(), id).Err()
}

func (s *Store) PendingIDs(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyPending()).Result()
}

func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, s.keyPending()).Result()
}

// ClaimsByUser returns the user's indexed claims, newest first.
func (s *Store) ClaimsByUser(ctx context.Context, userID string) ([]*Claim, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Claim, 0, len(ids))
	for _, id := range ids {
		c, cerr := s.Load(ctx, id)
		if cerr != nil || c == nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ParseRedisURL converts a redis:// URL into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
