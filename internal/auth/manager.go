package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/sync/singleflight"
)

// subscriberBuffer bounds each subscriber's queue. On overflow the oldest state is dropped.
const subscriberBuffer = 16

// Journal records state transitions. Errors are logged, never surfaced.
type Journal interface {
	Record(ctx context.Context, state AuthState) error
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Tokens         *TokenStore
	Authorizer     Authorizer
	ClientID       string
	RestoreSession bool // rebuild Authorized from a valid stored token at startup
	Journal        Journal
	Logger         *log.Logger
}

// Manager owns the authorization state machine and the live [Session].
//
//	Idle → Authorizing → Authorized(session) | Failed(err)
//	Authorized → Idle (sign out)
//	Authorized → Authorized(new session) | Failed(err) (renew)
//
// Outcomes are only observable through [Manager.Subscribe] and [Manager.State].
type Manager struct {
	tokens     *TokenStore
	authorizer Authorizer
	clientID   string
	restore    bool
	journal    Journal
	logger     *log.Logger

	mu      sync.Mutex
	state   AuthState
	session *Session
	subs    map[int]chan AuthState
	nextSub int

	renewals singleflight.Group
}

// NewManager builds a [Manager], registers it as the authorizer's delegate and loads any stored session.
func NewManager(ctx context.Context, opts ManagerOpts) *Manager {
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	m := &Manager{
		tokens:     opts.Tokens,
		authorizer: opts.Authorizer,
		clientID:   opts.ClientID,
		restore:    opts.RestoreSession,
		journal:    opts.Journal,
		logger:     opts.Logger,
		state:      Idle(),
		subs:       make(map[int]chan AuthState),
	}

	if m.authorizer != nil {
		m.authorizer.SetDelegate(m)
	}

	m.loadStoredSession(ctx)
	return m
}

// loadStoredSession reconciles the stored token with the in-memory state.
//
// A valid token without a live session leaves the manager Idle unless restore is enabled; the user signs in
// again. An invalid or expired token is deleted; a store failure leaves the token in place.
func (m *Manager) loadStoredSession(ctx context.Context) {
	token, err := m.tokens.LoadToken(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		m.logger.Debug("no stored token")
	case errors.Is(err, shared.ErrTokenInvalid):
		m.logger.Warn("discarding unreadable stored token", "error", err)
		m.deleteTokenLocked(ctx)
	case err != nil:
		m.logger.Warn("could not read stored token", "error", err)
	case token.IsExpired():
		m.logger.Info("discarding expired stored token", "expired_at", token.ExpiresAt)
		m.deleteTokenLocked(ctx)
	case m.restore && m.session == nil:
		m.session = newSession(token, nil)
		m.setLocked(ctx, Authorized(*m.session))
		return
	}

	if m.session == nil {
		m.setLocked(ctx, Idle())
	}
}

// StartAuthorization begins the platform flow.
//
// Without a client id the manager moves straight to Failed. A call while Authorizing is ignored.
func (m *Manager) StartAuthorization(ctx context.Context) {
	m.mu.Lock()
	if m.state.Phase == PhaseAuthorizing {
		m.mu.Unlock()
		m.logger.Debug("authorization already in flight")
		return
	}

	if m.clientID == "" {
		m.setLocked(ctx, Failed(shared.ErrMissingClientID))
		m.mu.Unlock()
		return
	}

	if m.authorizer == nil {
		m.setLocked(ctx, Failed(fmt.Errorf("%w: no authorizer configured", shared.ErrInvalidConfig)))
		m.mu.Unlock()
		return
	}

	m.setLocked(ctx, Authorizing())
	m.mu.Unlock()

	if err := m.authorizer.InitiateSession(ctx, Scopes); err != nil {
		m.SessionFailed(ctx, err)
	}
}

// SessionInitiated persists token and moves Authorizing → Authorized. Outside Authorizing it is ignored.
func (m *Manager) SessionInitiated(ctx context.Context, token Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseAuthorizing {
		m.logger.Warn("ignoring session callback", "state", m.state.Phase)
		return
	}

	if err := m.tokens.SaveToken(ctx, token); err != nil {
		m.setLocked(ctx, Failed(fmt.Errorf("failed to persist session: %w", err)))
		return
	}

	m.session = newSession(token, Scopes)
	m.setLocked(ctx, Authorized(*m.session))
}

// SessionFailed moves Authorizing → Failed. The stored token is left alone.
func (m *Manager) SessionFailed(ctx context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseAuthorizing {
		m.logger.Warn("ignoring failure callback", "state", m.state.Phase, "error", err)
		return
	}

	m.setLocked(ctx, Failed(err))
}

// RenewSession refreshes the live session's token. Concurrent callers share one refresh.
//
// Only an Authorized session is renewed. When a sign-out or a new sign-in happens while the refresh is in
// flight, the result is dropped and [shared.ErrNotAuthenticated] is returned.
//
// Success replaces the stored token and emits Authorized with a new session; failure emits Failed and keeps
// the stored token.
func (m *Manager) RenewSession(ctx context.Context) error {
	_, err, joined := m.renewals.Do("renew", func() (any, error) {
		return nil, m.renew(ctx)
	})
	if joined {
		m.logger.Debug("joined in-flight renewal")
	}
	return err
}

func (m *Manager) renew(ctx context.Context) error {
	m.mu.Lock()
	current := m.session
	phase := m.state.Phase
	m.mu.Unlock()

	if current == nil || phase != PhaseAuthorized {
		return fmt.Errorf("%w: no live session to renew", shared.ErrNotAuthenticated)
	}
	if m.authorizer == nil {
		return fmt.Errorf("%w: no authorizer configured", shared.ErrInvalidConfig)
	}

	token, err := m.authorizer.Renew(ctx, current.Token)

	m.mu.Lock()
	defer m.mu.Unlock()

	// a sign-out or a new sign-in owns the state now
	if m.session == nil || m.session.ID != current.ID || m.state.Phase != PhaseAuthorized {
		return fmt.Errorf("%w: session ended during renewal", shared.ErrNotAuthenticated)
	}

	if err != nil {
		m.session = nil
		m.setLocked(ctx, Failed(err))
		return err
	}

	if err := m.tokens.SaveToken(ctx, token); err != nil {
		err = fmt.Errorf("failed to persist renewed session: %w", err)
		m.session = nil
		m.setLocked(ctx, Failed(err))
		return err
	}

	m.session = newSession(token, current.Scopes)
	m.setLocked(ctx, Authorized(*m.session))
	return nil
}

// SignOut deletes the stored token, drops the live session and emits Idle.
//
// The state always ends Idle; a storage failure is returned after the transition.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.tokens.DeleteToken(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.setLocked(ctx, Idle())
	return err
}

// IsAuthorized is true when either the stored token or the live session is unexpired.
func (m *Manager) IsAuthorized(ctx context.Context) bool {
	if m.tokens.HasValidToken(ctx) {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && !m.session.IsExpired()
}

// State returns the current state.
func (m *Manager) State() AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the live session, if any.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return m.session.clone(), true
}

// Subscribe returns a channel that first receives the current state and then every later transition.
//
// A slow subscriber loses the oldest queued states, never the latest. cancel closes the channel.
func (m *Manager) Subscribe() (<-chan AuthState, func()) {
	ch := make(chan AuthState, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state
	m.mu.Unlock()

	cancel := sync.OnceFunc(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	})

	return ch, cancel
}

func (m *Manager) setLocked(ctx context.Context, s AuthState) {
	prev := m.state
	m.state = s
	m.logger.Debug("auth state changed", "state", s)

	for _, ch := range m.subs {
		deliverLatest(ch, s)
	}

	if m.journal != nil && !(prev.Phase == PhaseIdle && s.Phase == PhaseIdle) {
		if err := m.journal.Record(ctx, s); err != nil {
			m.logger.Warn("failed to record auth event", "error", err)
		}
	}
}

func (m *Manager) deleteTokenLocked(ctx context.Context) {
	if err := m.tokens.DeleteToken(ctx); err != nil {
		m.logger.Warn("failed to delete stored token", "error", err)
	}
}

func deliverLatest(ch chan AuthState, s AuthState) {
	for {
		select {
		case ch <- s:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}
