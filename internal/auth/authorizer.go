package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SessionDelegate receives the outcome of a platform authorization.
type SessionDelegate interface {
	SessionInitiated(ctx context.Context, token Token)
	SessionFailed(ctx context.Context, err error)
}

// Authorizer is the platform auth port: it hands the user off to Spotify, receives the redirect, and
// refreshes tokens.
type Authorizer interface {
	// SetDelegate registers the receiver of initiate outcomes.
	SetDelegate(d SessionDelegate)

	// InitiateSession starts the hand-off. The outcome arrives later through the delegate.
	InitiateSession(ctx context.Context, scopes []string) error

	// Handle consumes a redirect URL. It returns false when the URL is not addressed to this authorizer.
	Handle(ctx context.Context, u *url.URL) bool

	// Renew exchanges the token's refresh token for a new token.
	Renew(ctx context.Context, token Token) (Token, error)
}

// AuthorizerOpts configures an [OAuthAuthorizer].
type AuthorizerOpts struct {
	ClientID     string
	ClientSecret string // optional with PKCE
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Open         func(authURL string) error // presents the authorization page; defaults to [shared.OpenBrowser]
	HTTPClient   *http.Client
	Logger       *log.Logger
}

type pendingAuth struct {
	state    string
	verifier string
	scopes   []string
}

// OAuthAuthorizer implements [Authorizer] with the authorization-code flow plus PKCE.
type OAuthAuthorizer struct {
	config     oauth2.Config
	redirect   *url.URL
	open       func(string) error
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	pending  *pendingAuth
	delegate SessionDelegate
}

// NewOAuthAuthorizer creates an [OAuthAuthorizer]. Missing endpoints default to Spotify's accounts service.
func NewOAuthAuthorizer(opts AuthorizerOpts) (*OAuthAuthorizer, error) {
	redirect, err := url.Parse(opts.RedirectURI)
	if err != nil || redirect.Scheme == "" || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect URI %q", shared.ErrInvalidConfig, opts.RedirectURI)
	}

	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	style := oauth2.AuthStyleInHeader
	if opts.ClientSecret == "" {
		style = oauth2.AuthStyleInParams
	}

	return &OAuthAuthorizer{
		config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: style,
			},
		},
		redirect:   redirect,
		open:       opts.Open,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}, nil
}

func (a *OAuthAuthorizer) SetDelegate(d SessionDelegate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delegate = d
}

// InitiateSession builds the authorization URL with a fresh state and PKCE verifier and opens it.
//
// Starting again replaces the pending attempt, so an older redirect no longer matches.
func (a *OAuthAuthorizer) InitiateSession(ctx context.Context, scopes []string) error {
	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	authURL := a.AuthCodeURL(state, verifier, scopes)

	a.mu.Lock()
	a.pending = &pendingAuth{state: state, verifier: verifier, scopes: slices.Clone(scopes)}
	a.mu.Unlock()

	a.logger.Debug("opening authorization page", "scopes", len(scopes))
	if err := a.open(authURL); err != nil {
		return fmt.Errorf("failed to present authorization page: %w", err)
	}

	return nil
}

// AuthCodeURL returns the authorization page URL for the given state, verifier and scopes.
func (a *OAuthAuthorizer) AuthCodeURL(state, verifier string, scopes []string) string {
	cfg := a.config
	cfg.Scopes = scopes
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Handle validates the redirect against the pending attempt, exchanges the code and reports to the delegate.
//
// A pending attempt is consumed by the first matching redirect, valid or not. A redirect that
// arrives with no attempt in flight is not consumed and reports nothing.
func (a *OAuthAuthorizer) Handle(ctx context.Context, u *url.URL) bool {
	if u == nil || !a.isRedirect(u) {
		return false
	}

	a.mu.Lock()
	pending, delegate := a.pending, a.delegate
	a.pending = nil
	a.mu.Unlock()

	if pending == nil {
		a.logger.Warn("ignoring redirect with no authorization in flight")
		return false
	}

	report := func(token Token, err error) {
		if delegate == nil {
			a.logger.Warn("no session delegate registered", "error", err)
			return
		}
		if err != nil {
			delegate.SessionFailed(ctx, err)
			return
		}
		delegate.SessionInitiated(ctx, token)
	}

	query := u.Query()
	if query.Get("state") != pending.state {
		report(Token{}, shared.ErrStateMismatch)
		return true
	}

	code := query.Get("code")
	if code == "" {
		report(Token{}, fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description")))
		return true
	}

	tok, err := a.config.Exchange(a.clientContext(ctx), code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		report(Token{}, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err))
		return true
	}

	report(TokenFromOAuth2(tok), nil)
	return true
}

// Renew refreshes token. Spotify may omit a new refresh token, in which case the old one is kept.
func (a *OAuthAuthorizer) Renew(ctx context.Context, token Token) (Token, error) {
	if token.RefreshToken == "" {
		return Token{}, fmt.Errorf("%w: no refresh token", shared.ErrTokenInvalid)
	}

	expired := &oauth2.Token{RefreshToken: token.RefreshToken, Expiry: time.Unix(1, 0)}
	fresh, err := a.config.TokenSource(a.clientContext(ctx), expired).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return Token{}, fmt.Errorf("%w: refresh token rejected: %v", shared.ErrTokenInvalid, err)
		}
		return Token{}, fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthFailed, err)
	}

	renewed := TokenFromOAuth2(fresh)
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = token.RefreshToken
	}

	return renewed, nil
}

func (a *OAuthAuthorizer) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *OAuthAuthorizer) isRedirect(u *url.URL) bool {
	if u.Scheme != "" && !strings.EqualFold(u.Scheme, a.redirect.Scheme) {
		return false
	}
	if u.Host != "" && !strings.EqualFold(u.Host, a.redirect.Host) {
		return false
	}
	return strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(a.redirect.Path, "/")
}
