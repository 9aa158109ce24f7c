package artifact

import (
	"context"
	"errors"
	"fmt"

	"disease-predictor/internal/common/database"
)

// RedisStore keeps blobs under prefix+name.
type RedisStore struct {
	client *database.RedisClient
	prefix string
}

func NewRedisStore(client *database.RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := s.client.GetBytes(ctx, s.prefix+name)
	if errors.Is(err, database.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s%s", ErrNotFound, s.prefix, name)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return b, nil
}

func (s *RedisStore) Put(ctx context.Context, name string, blob []byte) error {
	if err := s.client.Set(ctx, s.prefix+name, blob, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
