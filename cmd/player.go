package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/ui"
	"github.com/urfave/cli/v3"
)

// PlayerNow prints the current playback.
func (r *Runner) PlayerNow(ctx context.Context, cmd *cli.Command) error {
	pb, err := r.spotify.GetCurrentPlayback(ctx)
	if err != nil {
		return err
	}

	return r.render(cmd, pb, func(w io.Writer) error {
		return formatter.Playback(w, pb)
	})
}

// PlayerPlay resumes playback, or starts the given track URIs or --context.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	opts := services.PlayOptions{
		DeviceID:   cmd.String("device"),
		ContextURI: cmd.String("context"),
		URIs:       cmd.Args().Slice(),
	}
	if offset := cmd.Int("offset"); offset >= 0 {
		opts.Offset = &offset
	}

	if err := r.spotify.Play(ctx, opts); err != nil {
		return err
	}

	switch {
	case opts.ContextURI != "":
		return r.writePlain("▶ Playing %s\n", opts.ContextURI)
	case len(opts.URIs) > 0:
		return r.writePlain("▶ Playing %d track(s)\n", len(opts.URIs))
	default:
		return r.writePlain("▶ Resumed\n")
	}
}

func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	if err := r.spotify.Pause(ctx, cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("⏸ Paused\n")
}

func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	if err := r.spotify.NextTrack(ctx, cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("⏭ Skipped to next track\n")
}

func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	if err := r.spotify.PreviousTrack(ctx, cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("⏮ Back to previous track\n")
}

// PlayerSeek moves to a position given as seconds, m:ss or a Go duration.
func (r *Runner) PlayerSeek(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("%w: seek position", shared.ErrMissingArgument)
	}

	pos, err := parsePosition(cmd.Args().First())
	if err != nil {
		return err
	}

	if err := r.spotify.Seek(ctx, int(pos.Milliseconds()), cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("Seeked to %s\n", formatter.FormatDuration(pos))
}

// parsePosition accepts "90", "1:30", "1:02:03" or "1m30s".
func parsePosition(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: seek position", shared.ErrMissingArgument)
	}

	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: position must not be negative", shared.ErrInvalidArgument)
		}
		return time.Duration(secs) * time.Second, nil
	}

	if strings.Contains(s, ":") {
		var total int
		for part := range strings.SplitSeq(s, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || len(part) == 0 {
				return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
			}
			total = total*60 + n
		}
		return time.Duration(total) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
	}
	return d, nil
}

// PlayerShuffle sets shuffle from "on"/"off", or toggles the current state.
func (r *Runner) PlayerShuffle(ctx context.Context, cmd *cli.Command) error {
	var state bool
	switch arg := strings.ToLower(cmd.Args().First()); arg {
	case "on", "true":
		state = true
	case "off", "false":
		state = false
	case "":
		pb, err := r.spotify.GetCurrentPlayback(ctx)
		if err != nil {
			return err
		}
		if pb == nil {
			return fmt.Errorf("%w: no active device", shared.ErrNotFound)
		}
		state = !pb.ShuffleState
	default:
		return fmt.Errorf("%w: shuffle state %q (want on or off)", shared.ErrInvalidArgument, arg)
	}

	if err := r.spotify.SetShuffle(ctx, state, cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("Shuffle %s\n", onOff(state))
}

// PlayerRepeat sets the repeat mode, or cycles off → context → track.
func (r *Runner) PlayerRepeat(ctx context.Context, cmd *cli.Command) error {
	var state models.RepeatState
	switch arg := strings.ToLower(cmd.Args().First()); arg {
	case string(models.RepeatOff), string(models.RepeatContext), string(models.RepeatTrack):
		state = models.RepeatState(arg)
	case "":
		pb, err := r.spotify.GetCurrentPlayback(ctx)
		if err != nil {
			return err
		}
		if pb == nil {
			return fmt.Errorf("%w: no active device", shared.ErrNotFound)
		}
		state = ui.NextRepeat(pb.RepeatState)
	default:
		return fmt.Errorf("%w: repeat mode %q (want off, context or track)", shared.ErrInvalidArgument, arg)
	}

	if err := r.spotify.SetRepeat(ctx, state, cmd.String("device")); err != nil {
		return err
	}
	return r.writePlain("Repeat %s\n", state)
}

func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	devices, err := r.spotify.GetDevices(ctx)
	if err != nil {
		return err
	}

	return r.render(cmd, devices, func(w io.Writer) error {
		return formatter.Devices(w, devices)
	})
}

// PlayerWatch opens the live now-playing view.
func (r *Runner) PlayerWatch(ctx context.Context, cmd *cli.Command) error {
	return ui.Run(ctx, r.spotify, cmd.Duration("interval"))
}

// quietBootstrap wires the services with a discarding logger; log lines would corrupt the watch screen.
func (r *Runner) quietBootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.spotify == nil {
		r.logger = shared.NopLogger()
	}
	return r.Bootstrap(ctx, cmd)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
