package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/keychain"
	"github.com/desertthunder/nowplaying/internal/shared"
)

func TestToken(t *testing.T) {
	now := time.Now()

	t.Run("Validity", func(t *testing.T) {
		tc := []struct {
			name    string
			expires time.Time
			valid   bool
		}{
			{name: "future", expires: now.Add(time.Hour), valid: true},
			{name: "past", expires: now.Add(-time.Second), valid: false},
			{name: "exactly now", expires: now, valid: false},
			{name: "zero", expires: time.Time{}, valid: false},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				token := Token{AccessToken: "a", ExpiresAt: tt.expires}
				if got := token.ValidAt(now); got != tt.valid {
					t.Errorf("ValidAt() = %v, want %v", got, tt.valid)
				}
			})
		}
	})

	t.Run("IsExpired Is Complement", func(t *testing.T) {
		for _, exp := range []time.Time{now.Add(time.Hour), now.Add(-time.Hour)} {
			token := Token{AccessToken: "a", ExpiresAt: exp}
			if token.IsValid() == token.IsExpired() {
				t.Errorf("IsValid and IsExpired agree for %v", exp)
			}
		}
	})

	t.Run("OAuth2 Conversion", func(t *testing.T) {
		token := Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: now}
		back := TokenFromOAuth2(token.OAuth2())
		if back != token {
			t.Errorf("expected %+v, got %+v", token, back)
		}

		if got := TokenFromOAuth2(nil); got != (Token{}) {
			t.Errorf("expected zero token for nil, got %+v", got)
		}
	})
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")
		want := Token{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}

		if err := store.SaveToken(ctx, want); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		got, err := store.LoadToken(ctx)
		if err != nil {
			t.Fatalf("failed to load token: %v", err)
		}

		if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
			t.Errorf("expected %+v, got %+v", want, got)
		}

		if d := got.ExpiresAt.Sub(want.ExpiresAt).Abs(); d > time.Second {
			t.Errorf("expiry drifted by %v", d)
		}
	})

	t.Run("Round Trip Through Sealed SQLite", func(t *testing.T) {
		db, err := shared.OpenStore(":memory:")
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer db.Close()

		key, _ := keychain.GenerateKey()
		sealer, _ := keychain.NewSealer(key)
		store := NewTokenStore(keychain.NewSQLiteStore(db, sealer), "custom.key")

		want := Token{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
		if err := store.SaveToken(ctx, want); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		got, err := store.LoadToken(ctx)
		if err != nil {
			t.Fatalf("failed to load token: %v", err)
		}
		if !got.ExpiresAt.Equal(want.ExpiresAt) || got.AccessToken != want.AccessToken {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("HasValidToken Lifecycle", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")

		if store.HasValidToken(ctx) {
			t.Error("expected no valid token before save")
		}

		if err := store.SaveToken(ctx, Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if !store.HasValidToken(ctx) {
			t.Error("expected valid token after saving a future expiry")
		}

		if err := store.SaveToken(ctx, Token{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if store.HasValidToken(ctx) {
			t.Error("expected no valid token after saving a past expiry")
		}

		if err := store.SaveToken(ctx, Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if err := store.DeleteToken(ctx); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if store.HasValidToken(ctx) {
			t.Error("expected no valid token after delete")
		}
	})

	t.Run("HasValidToken Swallows Read Errors", func(t *testing.T) {
		mem := keychain.NewMemoryStore()
		_ = mem.Save(ctx, DefaultTokenKey, []byte("{not json"))
		store := NewTokenStore(mem, "")

		if store.HasValidToken(ctx) {
			t.Error("expected false for unreadable token")
		}
	})

	t.Run("Delete Missing Token", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")
		if err := store.DeleteToken(ctx); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Load Errors", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")
		if _, err := store.LoadToken(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		mem := keychain.NewMemoryStore()
		_ = mem.Save(ctx, DefaultTokenKey, []byte(`{"access_token":""}`))
		store = NewTokenStore(mem, "")
		if _, err := store.LoadToken(ctx); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}

		_ = mem.Save(ctx, DefaultTokenKey, []byte("garbage"))
		if _, err := store.LoadToken(ctx); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("Save Rejects Empty Access Token", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")
		if err := store.SaveToken(ctx, Token{}); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("Current Tokens", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")

		if _, err := store.CurrentAccessToken(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		_ = store.SaveToken(ctx, Token{AccessToken: "a1", ExpiresAt: time.Now().Add(time.Hour)})
		if _, err := store.CurrentRefreshToken(ctx); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid without refresh token, got %v", err)
		}

		_ = store.SaveToken(ctx, Token{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: time.Now().Add(time.Hour)})

		access, err := store.CurrentAccessToken(ctx)
		if err != nil || access != "a2" {
			t.Errorf("expected a2, got %q, %v", access, err)
		}

		refresh, err := store.CurrentRefreshToken(ctx)
		if err != nil || refresh != "r2" {
			t.Errorf("expected r2, got %q, %v", refresh, err)
		}
	})

	t.Run("ExpiresIn", func(t *testing.T) {
		store := NewTokenStore(keychain.NewMemoryStore(), "")
		fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return fixed }

		_ = store.SaveToken(ctx, Token{AccessToken: "a", ExpiresAt: fixed.Add(30 * time.Minute)})

		d, err := store.ExpiresIn(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d != 30*time.Minute {
			t.Errorf("expected 30m, got %v", d)
		}
	})
}
