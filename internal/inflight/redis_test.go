package inflight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements SET NX and the compare-and-delete release in memory.
// Scripter methods other than Eval/EvalSha are never called.
type fakeRedis struct {
	redis.Scripter

	mu      sync.Mutex
	keys    map[string]string
	ttl     map[string]time.Duration
	setErr  error
	evalErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.keys[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) release(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return redis.NewCmdResult(nil, f.evalErr)
	}
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.release(keys, args)
}

// expire simulates the hold's TTL running out.
func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

func (f *fakeRedis) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keys[key]
	return v, ok
}

func TestRedis_SecondAcquireIsBusy(t *testing.T) {
	fake := newFakeRedis()
	g := &Redis{rdb: fake, ttl: 15 * time.Second}
	ctx := context.Background()
	key := Key("order", "a")

	release, err := g.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if got := fake.ttl[key]; got != 15*time.Second {
		t.Errorf("ttl: got %v, want 15s", got)
	}
	if _, err := g.Acquire(ctx, key); !errors.Is(err, ErrBusy) {
		t.Errorf("second acquire: got %v, want ErrBusy", err)
	}

	release()
	release() // second call is a no-op
	if _, held := fake.holder(key); held {
		t.Fatal("key still held after release")
	}

	r, err := g.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	r()
}

func TestRedis_StaleHolderKeepsOffForeignToken(t *testing.T) {
	fake := newFakeRedis()
	g := &Redis{rdb: fake, ttl: time.Second}
	ctx := context.Background()
	key := Key("reservation", "r1")

	staleRelease, err := g.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	fake.expire(key)

	freshRelease, err := g.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	fresh, _ := fake.holder(key)

	staleRelease()
	if got, held := fake.holder(key); !held || got != fresh {
		t.Errorf("stale release removed the new hold: held=%v token=%q, want %q", held, got, fresh)
	}

	freshRelease()
	if _, held := fake.holder(key); held {
		t.Error("key still held after owner released")
	}
}

func TestRedis_Errors(t *testing.T) {
	fake := newFakeRedis()
	g := &Redis{rdb: fake, ttl: time.Second}
	down := errors.New("connection refused")

	fake.setErr = down
	if _, err := g.Acquire(context.Background(), "k"); !errors.Is(err, down) {
		t.Errorf("acquire: got %v, want %v", err, down)
	}

	// A failed release is logged; the hold then expires on its TTL.
	fake.setErr = nil
	release, err := g.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	fake.evalErr = down
	release()
	if _, held := fake.holder("k"); !held {
		t.Error("expected the hold to remain until its TTL")
	}
}
