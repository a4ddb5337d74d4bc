package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dataset:"

// RedisStore keeps datasets in redis so multiple instances can share uploads.
// Expiry is delegated to redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis at the given address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Ping verifies the connection, for startup checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Put(ctx context.Context, ds *StoredDataset) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	ttl := time.Until(ds.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("dataset %s already expired", ds.ID)
	}
	return s.client.Set(ctx, redisKeyPrefix+ds.ID, payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*StoredDataset, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}

	var ds StoredDataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", id, err)
	}
	return &ds, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}

// SweepExpired is a no-op; redis evicts expired keys on its own.
func (s *RedisStore) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan datasets: %w", err)
	}
	return count, nil
}

// Close releases the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
