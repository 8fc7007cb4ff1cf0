package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/models"
)

// AuthJournal implements auth.Journal using [AuthEventRepository].
//
// Each transition becomes one event. When Keep is positive older events are pruned after every insert.
type AuthJournal struct {
	repo *AuthEventRepository
	keep int
}

// NewAuthJournal creates a new [AuthJournal]. keep ≤ 0 disables pruning.
func NewAuthJournal(repo *AuthEventRepository, keep int) *AuthJournal {
	return &AuthJournal{repo: repo, keep: keep}
}

// Record stores state. Only the session id, the token expiry and error text are kept.
func (j *AuthJournal) Record(ctx context.Context, state auth.AuthState) error {
	event := EventFromState(state)
	if err := j.repo.Create(ctx, &event); err != nil {
		return err
	}

	if j.keep > 0 {
		if _, err := j.repo.Prune(ctx, j.keep); err != nil {
			return fmt.Errorf("failed to apply history limit: %w", err)
		}
	}

	return nil
}

// EventFromState converts a state into an unsaved event.
func EventFromState(state auth.AuthState) models.AuthEvent {
	event := models.AuthEvent{State: state.Phase.String()}

	switch state.Phase {
	case auth.PhaseAuthorized:
		if state.Session != nil {
			event.SessionID = state.Session.ID
			event.Detail = "token expires " + state.Session.Token.ExpiresAt.UTC().Format(time.RFC3339)
		}
	case auth.PhaseFailed:
		if state.Err != nil {
			event.Detail = state.Err.Error()
		}
	}

	return event
}
