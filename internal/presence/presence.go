package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a heartbeat keeps an agent online.
const DefaultTTL = 90 * time.Second

// Store tracks which agents are currently online.
type Store interface {
	Heartbeat(ctx context.Context, agentID int) error
	Offline(ctx context.Context, agentID int) error
	Online(ctx context.Context, agentIDs []int) (map[int]bool, error)
}

// RedisStore keeps one expiring key per online agent.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func key(agentID int) string {
	return fmt.Sprintf("agent:presence:%d", agentID)
}

func (s *RedisStore) Heartbeat(ctx context.Context, agentID int) error {
	return s.client.Set(ctx, key(agentID), strconv.FormatInt(s.now().Unix(), 10), s.ttl).Err()
}

func (s *RedisStore) Offline(ctx context.Context, agentID int) error {
	return s.client.Del(ctx, key(agentID)).Err()
}

func (s *RedisStore) Online(ctx context.Context, agentIDs []int) (map[int]bool, error) {
	out := make(map[int]bool, len(agentIDs))
	if len(agentIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(agentIDs))
	for i, id := range agentIDs {
		keys[i] = key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	for i, v := range vals {
		if v != nil {
			out[agentIDs[i]] = true
		}
	}
	return out, nil
}

// ActivityRecorder is the SQL side of presence.
type ActivityRecorder interface {
	SetPresence(ctx context.Context, agentID int, online bool, at time.Time) error
	ActiveSince(ctx context.Context, agentIDs []int, since time.Time) (map[int]bool, error)
}

// SQLStore derives presence from the agents table when Redis is not configured.
type SQLStore struct {
	repo ActivityRecorder
	ttl  time.Duration
	now  func() time.Time
}

func NewSQLStore(repo ActivityRecorder, ttl time.Duration) *SQLStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLStore{repo: repo, ttl: ttl, now: time.Now}
}

func (s *SQLStore) Heartbeat(ctx context.Context, agentID int) error {
	return s.repo.SetPresence(ctx, agentID, true, s.now())
}

func (s *SQLStore) Offline(ctx context.Context, agentID int) error {
	return s.repo.SetPresence(ctx, agentID, false, s.now())
}

func (s *SQLStore) Online(ctx context.Context, agentIDs []int) (map[int]bool, error) {
	return s.repo.ActiveSince(ctx, agentIDs, s.now().Add(-s.ttl))
}
