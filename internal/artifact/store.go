// Package artifact stores model artifacts as opaque blobs keyed by name.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"disease-predictor/internal/common/aws"
	"disease-predictor/internal/common/config"
	"disease-predictor/internal/common/database"
	apperrors "disease-predictor/internal/common/errors"
)

// ErrNotFound is returned when no blob exists under a name.
var ErrNotFound = errors.New("artifact not found")

// Store reads blobs.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// Writer stores blobs, replacing any previous blob with the same name.
type Writer interface {
	Put(ctx context.Context, name string, blob []byte) error
}

// Backend is a store that can be written to and released.
type Backend interface {
	Store
	Writer
	Close() error
}

type tableCreator interface {
	EnsureTable(ctx context.Context) error
}

// Prepare readies w for its first write. Postgres stores create their table, other
// backends need nothing.
func Prepare(ctx context.Context, w Writer) error {
	if tc, ok := w.(tableCreator); ok {
		return tc.EnsureTable(ctx)
	}
	return nil
}

// Open connects to the configured backend. Network backends are pinged so a bad
// address fails at startup instead of on the first read.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(cfg.File.Dir), nil

	case "redis":
		client := database.NewRedis(cfg.Redis)
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, apperrors.NewStoreConnectionFailedError("redis", err)
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix), nil

	case "postgres":
		client, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, apperrors.NewStoreConnectionFailedError("postgres", err)
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, apperrors.NewStoreConnectionFailedError("postgres", err)
		}
		return NewPostgresStore(client, cfg.Postgres.Table), nil

	case "s3":
		client, err := aws.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, apperrors.NewStoreConnectionFailedError("s3", err)
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown artifact store backend %q", cfg.Backend)
	}
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStore) Put(_ context.Context, name string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
