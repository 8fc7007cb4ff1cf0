package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()

	t.Run("Increments", func(t *testing.T) {
		db := setupTestDB(t)

		for want := 1; want <= 3; want++ {
			got, err := NextSequence(ctx, db, "auth_events")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("expected sequence %d, got %d", want, got)
			}
		}
	})

	t.Run("Unknown Table", func(t *testing.T) {
		db := setupTestDB(t)

		if _, err := NextSequence(ctx, db, "nope"); err == nil {
			t.Fatal("expected error for missing sequence table")
		}
	})
}

func TestAuthEventRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		event := models.AuthEvent{State: "authorizing"}

		if err := repo.Create(ctx, &event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		if event.ID == "" {
			t.Error("event ID should be set after creation")
		}
		if event.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", event.Sequence)
		}
		if event.CreatedAt.IsZero() {
			t.Error("created_at should default to now")
		}
	})

	t.Run("Create Requires State", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		err := repo.Create(ctx, &models.AuthEvent{State: " "})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		event := models.AuthEvent{State: "authorized", SessionID: "s-1", Detail: "ok", CreatedAt: created}

		if err := repo.Create(ctx, &event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		got, err := repo.Get(ctx, event.ID)
		if err != nil {
			t.Fatalf("failed to get event: %v", err)
		}

		if got.SessionID != "s-1" || got.Detail != "ok" || got.State != "authorized" {
			t.Errorf("unexpected event %+v", got)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
		}
	})

	t.Run("Get Empty Optional Fields", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		event := models.AuthEvent{State: "idle"}

		if err := repo.Create(ctx, &event); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}

		got, err := repo.Get(ctx, event.ID)
		if err != nil {
			t.Fatalf("failed to get event: %v", err)
		}
		if got.SessionID != "" || got.Detail != "" {
			t.Errorf("expected empty optional fields, got %+v", got)
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List Newest First", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		for _, state := range []string{"authorizing", "authorized", "idle"} {
			if err := repo.Create(ctx, &models.AuthEvent{State: state}); err != nil {
				t.Fatalf("failed to create event: %v", err)
			}
		}

		events, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		if events[0].State != "idle" || events[2].State != "authorizing" {
			t.Errorf("unexpected order: %s, %s, %s", events[0].State, events[1].State, events[2].State)
		}

		limited, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if len(limited) != 2 || limited[0].Sequence != 3 {
			t.Errorf("unexpected limited list %+v", limited)
		}
	})

	t.Run("List Empty", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		events, err := repo.List(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected no events, got %d", len(events))
		}
	})

	t.Run("Prune", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		for i := range 5 {
			if err := repo.Create(ctx, &models.AuthEvent{State: fmt.Sprintf("s%d", i)}); err != nil {
				t.Fatalf("failed to create event: %v", err)
			}
		}

		removed, err := repo.Prune(ctx, 2)
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 3 {
			t.Errorf("expected 3 rows removed, got %d", removed)
		}

		events, _ := repo.List(ctx, 0)
		if len(events) != 2 || events[0].State != "s4" || events[1].State != "s3" {
			t.Errorf("unexpected remaining events %+v", events)
		}

		if _, err := repo.Prune(ctx, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		_ = repo.Create(ctx, &models.AuthEvent{State: "idle"})

		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}

		events, _ := repo.List(ctx, 0)
		if len(events) != 0 {
			t.Errorf("expected empty history, got %d", len(events))
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewAuthEventRepository(db)
		db.Close()

		if err := repo.Create(ctx, &models.AuthEvent{State: "idle"}); err == nil {
			t.Error("expected error creating event on closed database")
		}
		if _, err := repo.List(ctx, 0); err == nil {
			t.Error("expected error listing events on closed database")
		}
	})

	t.Run("Concurrent Creates Get Unique Sequences", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := repo.Create(ctx, &models.AuthEvent{State: "authorizing"}); err != nil {
					t.Errorf("failed to create event: %v", err)
				}
			}()
		}
		wg.Wait()

		events, _ := repo.List(ctx, 0)
		seen := make(map[int]bool)
		for _, e := range events {
			if seen[e.Sequence] {
				t.Errorf("duplicate sequence %d", e.Sequence)
			}
			seen[e.Sequence] = true
		}
		if len(events) != 10 {
			t.Errorf("expected 10 events, got %d", len(events))
		}
	})
}

func TestAuthJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("EventFromState", func(t *testing.T) {
		expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		session := auth.Session{ID: "sess", Token: auth.Token{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: expires}}

		tc := []struct {
			name    string
			state   auth.AuthState
			session string
			detail  string
		}{
			{"idle", auth.Idle(), "", ""},
			{"authorizing", auth.Authorizing(), "", ""},
			{"authorized", auth.Authorized(session), "sess", "token expires 2026-05-01T10:00:00Z"},
			{"failed", auth.Failed(shared.ErrStateMismatch), "", "oauth state mismatch"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				event := EventFromState(tt.state)
				if event.State != tt.name || event.SessionID != tt.session || event.Detail != tt.detail {
					t.Errorf("unexpected event %+v", event)
				}
				if strings.Contains(event.Detail, "secret") {
					t.Error("event must not contain token material")
				}
			})
		}
	})

	t.Run("Record", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		journal := NewAuthJournal(repo, 0)

		for _, s := range []auth.AuthState{auth.Authorizing(), auth.Failed(errors.New("denied"))} {
			if err := journal.Record(ctx, s); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
		}

		events, _ := repo.List(ctx, 0)
		if len(events) != 2 || events[0].State != "failed" || events[0].Detail != "denied" {
			t.Errorf("unexpected events %+v", events)
		}
	})

	t.Run("Record Applies History Limit", func(t *testing.T) {
		repo := NewAuthEventRepository(setupTestDB(t))
		journal := NewAuthJournal(repo, 2)

		for range 4 {
			if err := journal.Record(ctx, auth.Idle()); err != nil {
				t.Fatalf("failed to record: %v", err)
			}
		}

		events, _ := repo.List(ctx, 0)
		if len(events) != 2 || events[0].Sequence != 4 {
			t.Errorf("expected the 2 newest events, got %+v", events)
		}
	})

	t.Run("Satisfies Journal", func(t *testing.T) {
		var _ auth.Journal = NewAuthJournal(nil, 0)
	})
}
