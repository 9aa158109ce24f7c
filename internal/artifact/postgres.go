package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"disease-predictor/internal/common/database"

	"github.com/lib/pq"
)

// PostgresStore keeps blobs in a two-column table (name TEXT PRIMARY KEY, blob BYTEA).
type PostgresStore struct {
	client *database.PostgresClient
	table  string
}

func NewPostgresStore(client *database.PostgresClient, table string) *PostgresStore {
	if table == "" {
		table = "model_artifacts"
	}
	return &PostgresStore{client: client, table: pq.QuoteIdentifier(table)}
}

// EnsureTable creates the artifact table if it does not exist.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, blob BYTEA NOT NULL)`, s.table)
	if _, err := s.client.Exec(ctx, query); err != nil {
		return fmt.Errorf("create artifact table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT blob FROM %s WHERE name = $1`, s.table)

	var blob []byte
	err := s.client.QueryRow(ctx, query, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", name, err)
	}
	return blob, nil
}

func (s *PostgresStore) Put(ctx context.Context, name string, blob []byte) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (name, blob) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET blob = EXCLUDED.blob`,
		s.table,
	)
	if _, err := s.client.Exec(ctx, query, name, blob); err != nil {
		return fmt.Errorf("postgres put %s: %w", name, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.client.Close()
}
