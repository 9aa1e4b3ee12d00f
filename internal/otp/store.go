package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Challenge is the live one-time code for an email.
type Challenge struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	// Delivered is set once the code reached the sender without error.
	Delivered bool `json:"delivered,omitempty"`
}

// Store keeps at most one challenge per normalized email.
type Store interface {
	// Put replaces any existing challenge.
	Put(ctx context.Context, email string, c Challenge) error
	// Get returns (nil, nil) when there is no challenge.
	Get(ctx context.Context, email string) (*Challenge, error)
	// Delete reports whether a challenge was removed by this call.
	Delete(ctx context.Context, email string) (bool, error)
}

// expiredGrace keeps a lapsed challenge around long enough to answer "expired"
// instead of "not found".
const expiredGrace = 24 * time.Hour

// RedisStore keeps challenges under otp:<email> as JSON.
type RedisStore struct {
	rdb     redis.Cmdable
	nowFunc func() time.Time
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, nowFunc: time.Now}
}

func key(email string) string { return fmt.Sprintf("otp:%s", email) }

func (s *RedisStore) Put(ctx context.Context, email string, c Challenge) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ttl := c.ExpiresAt.Sub(s.nowFunc()) + expiredGrace
	if err := s.rdb.Set(ctx, key(email), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (*Challenge, error) {
	b, err := s.rdb.Get(ctx, key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var c Challenge
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Del(ctx, key(email)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}
