package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, 90*time.Second), mr
}

func TestRedisStoreHeartbeatExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.Heartbeat(ctx, 3); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	online, err := store.Online(ctx, []int{3, 4})
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if !online[3] || online[4] {
		t.Fatalf("unexpected presence %+v", online)
	}

	mr.FastForward(91 * time.Second)
	online, err = store.Online(ctx, []int{3})
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if online[3] {
		t.Fatal("presence must expire after the TTL")
	}
}

func TestRedisStoreOffline(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_ = store.Heartbeat(ctx, 8)
	if err := store.Offline(ctx, 8); err != nil {
		t.Fatalf("offline: %v", err)
	}
	online, err := store.Online(ctx, []int{8})
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if online[8] {
		t.Fatal("agent must be offline")
	}
	if got, _ := store.Online(ctx, nil); len(got) != 0 {
		t.Fatal("empty input must yield empty result")
	}
}

type recorderStub struct {
	online map[int]bool
	last   time.Time
	since  time.Time
}

func (r *recorderStub) SetPresence(ctx context.Context, agentID int, online bool, at time.Time) error {
	r.online[agentID] = online
	r.last = at
	return nil
}

func (r *recorderStub) ActiveSince(ctx context.Context, ids []int, since time.Time) (map[int]bool, error) {
	r.since = since
	out := map[int]bool{}
	for _, id := range ids {
		if r.online[id] && r.last.After(since) {
			out[id] = true
		}
	}
	return out, nil
}

func TestSQLStoreUsesTTLWindow(t *testing.T) {
	rec := &recorderStub{online: map[int]bool{}}
	store := NewSQLStore(rec, time.Minute)
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Heartbeat(context.Background(), 1); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	now = now.Add(30 * time.Second)
	online, _ := store.Online(context.Background(), []int{1})
	if !online[1] {
		t.Fatal("expected agent online within TTL")
	}
	if !rec.since.Equal(now.Add(-time.Minute)) {
		t.Fatalf("unexpected window start %s", rec.since)
	}

	now = now.Add(2 * time.Minute)
	online, _ = store.Online(context.Background(), []int{1})
	if online[1] {
		t.Fatal("expected agent offline after TTL")
	}
}
