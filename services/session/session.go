// Package sessionsvc keeps track of revoked session tokens.
package sessionsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taarifa:revoked:"

// Store records revoked token ids until the tokens would have expired anyway.
type Store interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisStore struct {
	client  *redis.Client
	nowFunc func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, nowFunc: time.Now}
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.nowFunc())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+jti, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "revoking session")
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking session")
	}
	return n > 0, nil
}

// MemoryStore is the single-process Store used when no redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	nowFunc func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time), nowFunc: time.Now}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	if until.After(now) {
		s.revoked[jti] = until
	}
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && exp.After(s.nowFunc()), nil
}
