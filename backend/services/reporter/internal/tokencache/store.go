package tokencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no usable token is cached.
var ErrMiss = errors.New("tokencache: miss")

// Token stored in redis between runs.
type Token struct {
	Vendor    string    `json:"vendor"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store caches vendor bearer tokens in redis.
type Store struct {
	client redis.Cmdable
}

// NewStore returns redis-backed store.
func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Key derives the cache key from vendor and login without storing the login in clear.
func Key(vendor, login string) string {
	sum := sha256.Sum256([]byte(login))
	return fmt.Sprintf("vaeva:token:%s:%s", vendor, hex.EncodeToString(sum[:8]))
}

// Save caches the token until its expiry.
func (s *Store) Save(ctx context.Context, key string, token Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get returns the cached token or ErrMiss.
func (s *Store) Get(ctx context.Context, key string) (*Token, error) {
	result, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var token Token
	if err := json.Unmarshal([]byte(result), &token); err != nil {
		return nil, err
	}
	if !token.ExpiresAt.After(time.Now()) {
		return nil, ErrMiss
	}
	return &token, nil
}

// Delete removes a cached token, e.g. after the vendor rejected it.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
