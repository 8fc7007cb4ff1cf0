package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/auth"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser sign-in.
//
// A loopback server receives the redirect and hands it to the authorizer; the outcome is read from the session
// manager's state stream.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.noBrowser = cmd.Bool("no-browser")

	callback := server.NewCallbackHandler(r.authorizer, server.CallbackPath(r.config.Spotify.RedirectURI), r.logger)
	router := server.NewCallbackRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(callback)
	r.logger.Debug("callback routes registered", "routes", router.Routes())

	srv := server.NewServer(listenAddr(r.config), router, shared.WithLogger(r.logger, "component", "server"))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("callback server shutdown failed", "error", err)
		}
	}()
	r.logger.Debug("waiting for redirect", "addr", srv.Addr())

	states, cancel := r.manager.Subscribe()
	defer cancel()
	<-states // current state; only transitions from here on count

	r.manager.StartAuthorization(ctx)

	timeout := time.NewTimer(r.config.Auth.LoginTimeout())
	defer timeout.Stop()

	for {
		select {
		case state, ok := <-states:
			if !ok {
				return fmt.Errorf("%w: session manager stopped", shared.ErrAuthFailed)
			}

			switch state.Phase {
			case auth.PhaseAuthorized:
				r.writePlain("✓ Signed in to Spotify\n")
				if state.Session != nil {
					r.writePlain("Token expires %s\n", state.Session.Token.ExpiresAt.Local().Format(time.RFC1123))
				}
				return nil
			case auth.PhaseFailed:
				return fmt.Errorf("sign-in failed: %w", state.Err)
			case auth.PhaseAuthorizing:
				r.logger.Debug("authorization started")
			}

		case <-timeout.C:
			return fmt.Errorf("%w: no response from Spotify after %s", shared.ErrTimeout, r.config.Auth.LoginTimeout())

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// listenAddr is the redirect URI's host and port, falling back to the [server] section.
func listenAddr(cfg *shared.Config) string {
	if u, err := url.Parse(cfg.Spotify.RedirectURI); err == nil && u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func (r *Runner) presentAuthURL(authURL string) error {
	r.writePlain("Open this URL to sign in with Spotify:\n\n  %s\n\n", authURL)
	if r.noBrowser {
		return nil
	}

	if err := r.open(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
	}
	return nil
}

// authStatus is the JSON shape of `auth status`.
type authStatus struct {
	Authorized bool      `json:"authorized"`
	State      string    `json:"state"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	ExpiresIn  string    `json:"expires_in,omitempty"`
}

// AuthStatus reports whether a valid token is stored and its remaining lifetime.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status := authStatus{
		Authorized: r.manager.IsAuthorized(ctx),
		State:      r.manager.State().Phase.String(),
	}

	remaining, err := r.tokens.ExpiresIn(ctx)
	switch {
	case err == nil:
		status.ExpiresIn = remaining.Round(time.Second).String()
		status.ExpiresAt = time.Now().Add(remaining).UTC().Truncate(time.Second)
	case !errors.Is(err, shared.ErrNotAuthenticated) && !errors.Is(err, shared.ErrTokenInvalid):
		return err
	}

	return r.render(cmd, status, func(w io.Writer) error {
		if !status.Authorized {
			_, err := fmt.Fprintln(w, "✗ Not signed in. Run `np auth login`.")
			return err
		}
		_, err := fmt.Fprintf(w, "✓ Signed in (token valid for %s)\n", status.ExpiresIn)
		return err
	})
}

// AuthLogout deletes the stored token and ends the session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.manager.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthHistory lists recorded auth transitions, newest first.
func (r *Runner) AuthHistory(ctx context.Context, cmd *cli.Command) error {
	if r.events == nil {
		return fmt.Errorf("%w: auth history needs the credential database (drop --ephemeral)", shared.ErrInvalidArgument)
	}

	if cmd.Bool("clear") {
		if err := r.events.Clear(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Auth history cleared\n")
	}

	events, err := r.events.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.render(cmd, events, func(w io.Writer) error {
		return formatter.AuthEvents(w, events)
	})
}
