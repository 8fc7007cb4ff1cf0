package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// AuthEventRepository persists [models.AuthEvent] rows.
type AuthEventRepository struct {
	db *sql.DB
}

// NewAuthEventRepository creates a new [AuthEventRepository] with the given database connection
func NewAuthEventRepository(db *sql.DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Create inserts event with a generated ID and sequence. A zero CreatedAt is set to now.
func (r *AuthEventRepository) Create(ctx context.Context, event *models.AuthEvent) error {
	if strings.TrimSpace(event.State) == "" {
		return fmt.Errorf("validation failed: %w: event state", shared.ErrMissingArgument)
	}

	sequence, err := NextSequence(ctx, r.db, "auth_events")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.ID = shared.GenerateID()
	event.Sequence = sequence

	query := `
		INSERT INTO auth_events (id, sequence, session_id, state, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.Sequence, nullable(event.SessionID), event.State, nullable(event.Detail), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}

	return nil
}

// Get retrieves an event by ID.
func (r *AuthEventRepository) Get(ctx context.Context, id string) (*models.AuthEvent, error) {
	query := `
		SELECT id, sequence, session_id, state, detail, created_at
		FROM auth_events
		WHERE id = ?
	`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: auth event %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auth event: %w", err)
	}

	return event, nil
}

// List returns up to limit events, newest first. A limit of zero or less returns every event.
func (r *AuthEventRepository) List(ctx context.Context, limit int) ([]*models.AuthEvent, error) {
	query := `
		SELECT id, sequence, session_id, state, detail, created_at
		FROM auth_events
		ORDER BY sequence DESC
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// Prune deletes all but the newest keep events and reports how many rows were removed.
func (r *AuthEventRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidArgument)
	}

	query := `
		DELETE FROM auth_events
		WHERE sequence NOT IN (SELECT sequence FROM auth_events ORDER BY sequence DESC LIMIT ?)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune auth events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// Clear removes the whole history.
func (r *AuthEventRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM auth_events"); err != nil {
		return fmt.Errorf("failed to clear auth events: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.AuthEvent, error) {
	var (
		event     models.AuthEvent
		sessionID sql.NullString
		detail    sql.NullString
	)

	if err := row.Scan(&event.ID, &event.Sequence, &sessionID, &event.State, &detail, &event.CreatedAt); err != nil {
		return nil, err
	}

	event.SessionID = sessionID.String
	event.Detail = detail.String
	return &event, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
