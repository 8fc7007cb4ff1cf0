package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// Phase tags which [AuthState] variant is active.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthorizing
	PhaseAuthorized
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthorizing:
		return "authorizing"
	case PhaseAuthorized:
		return "authorized"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// AuthState is one of Idle, Authorizing, Authorized(session) or Failed(err).
//
// Session is set only for [PhaseAuthorized] and Err only for [PhaseFailed]. Each state fully replaces the
// previous one.
type AuthState struct {
	Phase   Phase
	Session *Session
	Err     error
}

// Idle is the initial and signed-out state.
func Idle() AuthState { return AuthState{Phase: PhaseIdle} }

// Authorizing is the transient state while the platform flow runs.
func Authorizing() AuthState { return AuthState{Phase: PhaseAuthorizing} }

// Authorized carries a copy of the live session.
func Authorized(s Session) AuthState {
	c := s.clone()
	return AuthState{Phase: PhaseAuthorized, Session: &c}
}

// Failed carries the error that ended the last attempt.
func Failed(err error) AuthState { return AuthState{Phase: PhaseFailed, Err: err} }

func (s AuthState) String() string {
	switch s.Phase {
	case PhaseAuthorized:
		if s.Session != nil {
			return fmt.Sprintf("authorized(%s)", s.Session.ID)
		}
	case PhaseFailed:
		return fmt.Sprintf("failed(%v)", s.Err)
	}
	return s.Phase.String()
}

// Session is the live authorization context bound to a [Token].
type Session struct {
	ID        string
	Token     Token
	Scopes    []string
	CreatedAt time.Time
}

func newSession(token Token, scopes []string) *Session {
	return &Session{
		ID:        shared.GenerateID(),
		Token:     token,
		Scopes:    slices.Clone(scopes),
		CreatedAt: time.Now(),
	}
}

// IsExpired reports whether the session's token has expired.
func (s Session) IsExpired() bool {
	return s.Token.IsExpired()
}

func (s Session) clone() Session {
	s.Scopes = slices.Clone(s.Scopes)
	return s
}
