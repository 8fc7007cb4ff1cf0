package keychain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// SQLiteStore implements [Store] on the credentials table created by [shared.RunMigrations].
type SQLiteStore struct {
	db     *sql.DB
	sealer *Sealer
}

// NewSQLiteStore creates a [SQLiteStore]. db must already be migrated.
func NewSQLiteStore(db *sql.DB, sealer *Sealer) *SQLiteStore {
	return &SQLiteStore{db: db, sealer: sealer}
}

// Save seals data and upserts it in a single statement, so readers see either the old or the new value.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", shared.ErrInvalidArgument)
	}

	blob, err := s.sealer.Seal(key, data)
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", key, err)
	}

	query := `
		INSERT INTO credentials (name, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, key, blob, now, now); err != nil {
		return fmt.Errorf("failed to save credential %s: %w", key, err)
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE name = ?", key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential %s: %w", key, err)
	}

	return s.sealer.Open(key, blob)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE name = ?", key); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM credentials WHERE name = ?)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check credential %s: %w", key, err)
	}
	return exists, nil
}
