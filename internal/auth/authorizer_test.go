package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
)

type recordingDelegate struct {
	mu     sync.Mutex
	tokens []Token
	errs   []error
}

func (d *recordingDelegate) SessionInitiated(ctx context.Context, token Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
}

func (d *recordingDelegate) SessionFailed(ctx context.Context, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "at-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"refresh_token": "rt-1",
			})
		case "refresh_token":
			if r.PostForm.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	}))
}

func newTestAuthorizer(t *testing.T, tokenURL string) (*OAuthAuthorizer, *recordingDelegate, *string) {
	t.Helper()
	var opened string
	a, err := NewOAuthAuthorizer(AuthorizerOpts{
		ClientID:    "client-id",
		RedirectURI: "http://127.0.0.1:3000/callback",
		AuthURL:     "https://accounts.example.com/authorize",
		TokenURL:    tokenURL,
		Open: func(u string) error {
			opened = u
			return nil
		},
	})
	if err != nil {
		t.Fatalf("failed to create authorizer: %v", err)
	}

	d := &recordingDelegate{}
	a.SetDelegate(d)
	return a, d, &opened
}

func pendingState(t *testing.T, opened string) string {
	t.Helper()
	u, err := url.Parse(opened)
	if err != nil {
		t.Fatalf("failed to parse opened URL: %v", err)
	}
	return u.Query().Get("state")
}

func TestNewOAuthAuthorizer(t *testing.T) {
	for _, redirect := range []string{"", "not a url", "/callback"} {
		if _, err := NewOAuthAuthorizer(AuthorizerOpts{ClientID: "id", RedirectURI: redirect}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("redirect %q: expected ErrInvalidConfig, got %v", redirect, err)
		}
	}
}

func TestOAuthAuthorizer(t *testing.T) {
	ctx := context.Background()
	srv := tokenServer(t)
	defer srv.Close()

	t.Run("InitiateSession Opens Authorization Page", func(t *testing.T) {
		a, _, opened := newTestAuthorizer(t, srv.URL)

		if err := a.InitiateSession(ctx, []string{"user-read-playback-state", "user-top-read"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		u, err := url.Parse(*opened)
		if err != nil {
			t.Fatalf("invalid URL opened: %v", err)
		}

		q := u.Query()
		checks := map[string]string{
			"client_id":             "client-id",
			"response_type":         "code",
			"redirect_uri":          "http://127.0.0.1:3000/callback",
			"code_challenge_method": "S256",
			"scope":                 "user-read-playback-state user-top-read",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s = %q, want %q", k, got, want)
			}
		}
		if q.Get("state") == "" || q.Get("code_challenge") == "" {
			t.Error("expected state and code_challenge")
		}
	})

	t.Run("Open Failure Is Returned", func(t *testing.T) {
		a, _, _ := newTestAuthorizer(t, srv.URL)
		a.open = func(string) error { return errors.New("no browser") }

		if err := a.InitiateSession(ctx, Scopes); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Successful Exchange", func(t *testing.T) {
		a, d, opened := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?code=good-code&state=" + url.QueryEscape(pendingState(t, *opened)))
		if !a.Handle(ctx, u) {
			t.Fatal("expected redirect to be handled")
		}

		if len(d.tokens) != 1 || len(d.errs) != 0 {
			t.Fatalf("expected one token and no errors, got %v / %v", d.tokens, d.errs)
		}

		token := d.tokens[0]
		if token.AccessToken != "at-1" || token.RefreshToken != "rt-1" {
			t.Errorf("unexpected token %+v", token)
		}
		if time.Until(token.ExpiresAt) < 50*time.Minute {
			t.Errorf("expected ~1h expiry, got %v", token.ExpiresAt)
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		a, d, _ := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?code=good-code&state=forged")
		a.Handle(ctx, u)

		if len(d.errs) != 1 || !errors.Is(d.errs[0], shared.ErrStateMismatch) {
			t.Fatalf("expected ErrStateMismatch, got %v", d.errs)
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		a, d, opened := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?error=access_denied&state=" + url.QueryEscape(pendingState(t, *opened)))
		a.Handle(ctx, u)

		if len(d.errs) != 1 || !errors.Is(d.errs[0], shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", d.errs)
		}
		if !strings.Contains(d.errs[0].Error(), "access_denied") {
			t.Errorf("expected provider error in message, got %v", d.errs[0])
		}
	})

	t.Run("Rejected Code", func(t *testing.T) {
		a, d, opened := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?code=bad-code&state=" + url.QueryEscape(pendingState(t, *opened)))
		a.Handle(ctx, u)

		if len(d.errs) != 1 || !errors.Is(d.errs[0], shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", d.errs)
		}
	})

	t.Run("Redirect Consumed Once", func(t *testing.T) {
		a, d, opened := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?code=good-code&state=" + url.QueryEscape(pendingState(t, *opened)))
		a.Handle(ctx, u)
		if a.Handle(ctx, u) {
			t.Error("expected replayed redirect to be left unhandled")
		}

		if len(d.tokens) != 1 || len(d.errs) != 0 {
			t.Errorf("expected one token and no errors, got %v / %v", d.tokens, d.errs)
		}
	})

	t.Run("Redirect Without Pending Attempt Not Consumed", func(t *testing.T) {
		a, d, _ := newTestAuthorizer(t, srv.URL)

		u, _ := url.Parse("http://127.0.0.1:3000/callback?code=good-code&state=anything")
		if a.Handle(ctx, u) {
			t.Error("expected redirect to be left unhandled")
		}
		if len(d.tokens)+len(d.errs) != 0 {
			t.Errorf("expected no delegate calls, got %v / %v", d.tokens, d.errs)
		}
	})

	t.Run("Foreign URL Not Handled", func(t *testing.T) {
		a, d, _ := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		for _, raw := range []string{
			"http://127.0.0.1:3000/elsewhere?code=x",
			"http://example.com/callback?code=x",
			"https://127.0.0.1:3000/callback?code=x",
		} {
			u, _ := url.Parse(raw)
			if a.Handle(ctx, u) {
				t.Errorf("expected %s to be ignored", raw)
			}
		}

		if a.Handle(ctx, nil) {
			t.Error("expected nil URL to be ignored")
		}
		if len(d.tokens)+len(d.errs) != 0 {
			t.Error("expected no delegate calls")
		}
	})

	t.Run("Relative Callback Path Handled", func(t *testing.T) {
		a, d, opened := newTestAuthorizer(t, srv.URL)
		_ = a.InitiateSession(ctx, Scopes)

		u, _ := url.Parse("/callback?code=good-code&state=" + url.QueryEscape(pendingState(t, *opened)))
		if !a.Handle(ctx, u) {
			t.Fatal("expected path-only redirect to be handled")
		}
		if len(d.tokens) != 1 {
			t.Errorf("expected one token, got %d", len(d.tokens))
		}
	})

	t.Run("Renew Keeps Refresh Token", func(t *testing.T) {
		a, _, _ := newTestAuthorizer(t, srv.URL)

		renewed, err := a.Renew(ctx, Token{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if renewed.AccessToken != "at-2" {
			t.Errorf("expected at-2, got %q", renewed.AccessToken)
		}
		if renewed.RefreshToken != "rt-1" {
			t.Errorf("expected refresh token to be kept, got %q", renewed.RefreshToken)
		}
	})

	t.Run("Renew Rejected", func(t *testing.T) {
		a, _, _ := newTestAuthorizer(t, srv.URL)

		if _, err := a.Renew(ctx, Token{RefreshToken: "revoked"}); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
		if _, err := a.Renew(ctx, Token{}); !errors.Is(err, shared.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid without refresh token, got %v", err)
		}
	})
}
