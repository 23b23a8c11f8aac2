package tokencache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// memoryRedis implements the commands the store uses; any other command panics on the nil embed.
type memoryRedis struct {
	redis.Cmdable
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestKeyHidesLogin(t *testing.T) {
	key := Key("wallbox", "me@example.com")
	if !strings.HasPrefix(key, "vaeva:token:wallbox:") {
		t.Fatalf("unexpected key %q", key)
	}
	if strings.Contains(key, "example.com") {
		t.Fatalf("login leaked into key %q", key)
	}
	if key != Key("wallbox", "me@example.com") {
		t.Fatalf("key not stable")
	}
	if key == Key("wallbox", "you@example.com") {
		t.Fatalf("different logins share a key")
	}
}

func TestStoreSaveGetDelete(t *testing.T) {
	rdb := newMemoryRedis()
	store := NewStore(rdb)
	ctx := context.Background()
	key := Key("wallbox", "me@example.com")

	expires := time.Now().Add(time.Hour)
	if err := store.Save(ctx, key, Token{Vendor: "wallbox", Value: "abc", ExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := rdb.ttls[key]; ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("expected ttl up to expiry, got %s", ttl)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "abc" || got.Vendor != "wallbox" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token %+v", got)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestStoreSkipsExpiredTokens(t *testing.T) {
	rdb := newMemoryRedis()
	store := NewStore(rdb)
	ctx := context.Background()

	if err := store.Save(ctx, "k", Token{Value: "old", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := rdb.values["k"]; ok {
		t.Fatalf("expired token must not be written")
	}

	// entry outliving its token, e.g. clock skew between runs
	rdb.values["k"] = `{"vendor":"wallbox","value":"old","expires_at":"2000-01-01T00:00:00Z"}`
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for expired entry, got %v", err)
	}
}

func TestStoreGetErrors(t *testing.T) {
	rdb := newMemoryRedis()
	store := NewStore(rdb)
	ctx := context.Background()

	if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for redis.Nil, got %v", err)
	}

	rdb.values["bad"] = "not json"
	if _, err := store.Get(ctx, "bad"); err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}

	down := errors.New("connection refused")
	rdb.getErr = down
	if _, err := store.Get(ctx, "any"); !errors.Is(err, down) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
