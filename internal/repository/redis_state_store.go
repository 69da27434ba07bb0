package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RugTracker/internal/domain/repository"
	"RugTracker/pkg/cache"
)

// RedisStateStore persists calibration snapshots in Redis so a restart
// resumes instead of starting cold.
type RedisStateStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewRedisStateStore creates a Redis-backed state store. A zero TTL keeps
// snapshots forever.
func NewRedisStateStore(c cache.Service, ttl time.Duration) repository.StateStore {
	return &RedisStateStore{cache: c, ttl: ttl}
}

func (s *RedisStateStore) SaveSnapshot(ctx context.Context, key string, v any) error {
	if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStateStore) LoadSnapshot(ctx context.Context, key string, v any) (bool, error) {
	err := s.cache.Get(ctx, key, v)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	return true, nil
}
