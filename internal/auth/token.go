package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/keychain"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultTokenKey is the keychain entry holding the serialized [Token].
const DefaultTokenKey = "spotify.token"

// Token is an access/refresh credential pair with its expiry.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ValidAt reports whether the token is usable at now. There is no grace period.
func (t Token) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// IsValid reports whether the token has not yet expired.
func (t Token) IsValid() bool {
	return t.ValidAt(time.Now())
}

// IsExpired is the strict complement of [Token.IsValid].
func (t Token) IsExpired() bool {
	return !t.IsValid()
}

// TokenFromOAuth2 converts an [oauth2.Token]. A zero expiry is treated as already expired.
func TokenFromOAuth2(t *oauth2.Token) Token {
	if t == nil {
		return Token{}
	}
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// OAuth2 converts the token back for use with [oauth2.Config].
func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.ExpiresAt,
	}
}

// TokenStore keeps one [Token] in a [keychain.Store] under a fixed key.
//
// Writes replace the whole entry; there are no partial updates.
type TokenStore struct {
	store keychain.Store
	key   string
	now   func() time.Time
}

// NewTokenStore creates a [TokenStore]. An empty key uses [DefaultTokenKey].
func NewTokenStore(store keychain.Store, key string) *TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{store: store, key: key, now: time.Now}
}

// SaveToken serializes and stores token, replacing any previous one.
func (s *TokenStore) SaveToken(ctx context.Context, token Token) error {
	if token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrTokenInvalid)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := s.store.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// LoadToken returns the stored token.
//
// A missing entry is [shared.ErrNotAuthenticated]; an entry that cannot be read back as a token is
// [shared.ErrTokenInvalid]. Expiry is not checked here.
func (s *TokenStore) LoadToken(ctx context.Context) (Token, error) {
	data, err := s.store.Load(ctx, s.key)
	switch {
	case errors.Is(err, shared.ErrItemNotFound):
		return Token{}, fmt.Errorf("%w: no stored token", shared.ErrNotAuthenticated)
	case errors.Is(err, shared.ErrUnexpectedData):
		return Token{}, fmt.Errorf("%w: %w", shared.ErrTokenInvalid, err)
	case err != nil:
		return Token{}, fmt.Errorf("failed to load token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("%w: %v", shared.ErrTokenInvalid, err)
	}

	if token.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access token", shared.ErrTokenInvalid)
	}

	return token, nil
}

// HasValidToken reports whether a readable, unexpired token is stored. Read failures count as false.
func (s *TokenStore) HasValidToken(ctx context.Context) bool {
	token, err := s.LoadToken(ctx)
	if err != nil {
		return false
	}
	return token.ValidAt(s.now())
}

// DeleteToken removes the stored token. Deleting when nothing is stored succeeds.
func (s *TokenStore) DeleteToken(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil && !errors.Is(err, shared.ErrItemNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// CurrentAccessToken reads the access token from the store on every call.
//
// An expired token is still returned; the API answers 401 and the caller renews.
func (s *TokenStore) CurrentAccessToken(ctx context.Context) (string, error) {
	token, err := s.LoadToken(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// CurrentRefreshToken reads the refresh token from the store.
func (s *TokenStore) CurrentRefreshToken(ctx context.Context) (string, error) {
	token, err := s.LoadToken(ctx)
	if err != nil {
		return "", err
	}
	if token.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", shared.ErrTokenInvalid)
	}
	return token.RefreshToken, nil
}

// ExpiresIn returns the remaining lifetime of the stored token (negative once expired).
func (s *TokenStore) ExpiresIn(ctx context.Context) (time.Duration, error) {
	token, err := s.LoadToken(ctx)
	if err != nil {
		return 0, err
	}
	return token.ExpiresAt.Sub(s.now()), nil
}
