package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryRecent prints the listening history, newest first.
func (r *Runner) LibraryRecent(ctx context.Context, cmd *cli.Command) error {
	recent, err := r.spotify.GetRecentlyPlayed(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.render(cmd, recent, func(w io.Writer) error {
		return formatter.RecentlyPlayed(w, recent)
	})
}

func (r *Runner) LibraryTopArtists(ctx context.Context, cmd *cli.Command) error {
	offset := cmd.Int("offset")
	page, err := r.spotify.GetTopArtists(ctx, models.TimeRange(cmd.String("range")), cmd.Int("limit"), offset)
	if err != nil {
		return err
	}

	return r.render(cmd, page, func(w io.Writer) error {
		return formatter.Artists(w, page.Items, offset)
	})
}

func (r *Runner) LibraryTopTracks(ctx context.Context, cmd *cli.Command) error {
	offset := cmd.Int("offset")
	page, err := r.spotify.GetTopTracks(ctx, models.TimeRange(cmd.String("range")), cmd.Int("limit"), offset)
	if err != nil {
		return err
	}

	return r.render(cmd, page, func(w io.Writer) error {
		return formatter.Tracks(w, page.Items, offset)
	})
}

func (r *Runner) LibraryMe(ctx context.Context, cmd *cli.Command) error {
	user, err := r.spotify.GetCurrentUser(ctx)
	if err != nil {
		return err
	}

	return r.render(cmd, user, func(w io.Writer) error {
		return formatter.User(w, user)
	})
}

// LibrarySearch joins all arguments into one track query.
func (r *Runner) LibrarySearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	offset := cmd.Int("offset")

	result, err := r.spotify.SearchTracks(ctx, query, cmd.Int("limit"), offset)
	if err != nil {
		return err
	}

	return r.render(cmd, result, func(w io.Writer) error {
		if len(result.Tracks.Items) == 0 {
			_, err := fmt.Fprintf(w, "No tracks found for %q\n", result.Query)
			return err
		}
		return formatter.Tracks(w, result.Tracks.Items, offset)
	})
}

func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	offset := cmd.Int("offset")
	page, err := r.spotify.GetPlaylists(ctx, cmd.Int("limit"), offset)
	if err != nil {
		return err
	}

	return r.render(cmd, page, func(w io.Writer) error {
		if err := formatter.Playlists(w, page.Items, offset); err != nil {
			return err
		}
		if page.HasNext {
			_, err := fmt.Fprintf(w, "\nShowing %d-%d of %d. Use --offset %d for more.\n",
				offset+1, offset+len(page.Items), page.Total, offset+len(page.Items))
			return err
		}
		return nil
	})
}

// PlaylistShow prints a playlist's metadata and one page, or all, of its tracks.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "playlist id")
	if err != nil {
		return err
	}

	pl, err := r.spotify.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}

	offset := cmd.Int("offset")
	var items []models.PlaylistTrack
	if cmd.Bool("all") {
		offset = 0
		items, err = services.CollectPlaylistTracks(ctx, r.spotify, id)
	} else {
		var page models.Page[models.PlaylistTrack]
		page, err = r.spotify.GetPlaylistTracks(ctx, id, cmd.Int("limit"), offset)
		items = page.Items
	}
	if err != nil {
		return err
	}

	export := &models.PlaylistExport{Playlist: pl, Tracks: items}
	return r.render(cmd, export, func(w io.Writer) error {
		fmt.Fprintf(w, "%s\n", pl.Name)
		if pl.Description != "" {
			fmt.Fprintf(w, "%s\n", pl.Description)
		}
		fmt.Fprintf(w, "by %s · %s · %d tracks\n\n", pl.Owner.DisplayName, formatter.VisibilityString(pl.Public), pl.TrackCount)
		return formatter.PlaylistTracks(w, items, offset)
	})
}

func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.Join(cmd.Args().Slice(), " ")
	public := cmd.Bool("public")
	details := services.PlaylistDetails{Name: name, Public: &public}
	if desc := cmd.String("description"); desc != "" {
		details.Description = &desc
	}

	pl, err := r.spotify.CreatePlaylist(ctx, details)
	if err != nil {
		return err
	}

	return r.render(cmd, pl, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "✓ Created playlist %s (ID: %s)\n", pl.Name, pl.ID)
		return err
	})
}

// PlaylistEdit updates only the fields given as flags.
func (r *Runner) PlaylistEdit(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "playlist id")
	if err != nil {
		return err
	}

	if cmd.Bool("public") && cmd.Bool("private") {
		return fmt.Errorf("%w: --public and --private are exclusive", shared.ErrInvalidArgument)
	}

	details := services.PlaylistDetails{Name: cmd.String("name")}
	if cmd.IsSet("description") {
		desc := cmd.String("description")
		details.Description = &desc
	}
	switch {
	case cmd.Bool("public"):
		public := true
		details.Public = &public
	case cmd.Bool("private"):
		public := false
		details.Public = &public
	}

	if err := r.spotify.UpdatePlaylist(ctx, id, details); err != nil {
		return err
	}
	return r.writePlain("✓ Updated playlist %s\n", id)
}

func (r *Runner) PlaylistAdd(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistAndURIs(cmd)
	if err != nil {
		return err
	}

	snapshot, err := r.spotify.AddTracks(ctx, id, uris)
	if err != nil {
		return err
	}

	r.logger.Debug("tracks added", "playlist", id, "snapshot", snapshot)
	return r.writePlain("✓ Added %d track(s) to %s\n", len(uris), id)
}

func (r *Runner) PlaylistRemove(ctx context.Context, cmd *cli.Command) error {
	id, uris, err := playlistAndURIs(cmd)
	if err != nil {
		return err
	}

	snapshot, err := r.spotify.RemoveTracks(ctx, id, uris)
	if err != nil {
		return err
	}

	r.logger.Debug("tracks removed", "playlist", id, "snapshot", snapshot)
	return r.writePlain("✓ Removed %d track(s) from %s\n", len(uris), id)
}

func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, 0, "playlist id")
	if err != nil {
		return err
	}

	if err := r.spotify.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// PlaylistBuild reads "title - artist" lines from --file or stdin and builds a playlist from the matches.
func (r *Runner) PlaylistBuild(ctx context.Context, cmd *cli.Command) error {
	name := strings.Join(cmd.Args().Slice(), " ")

	var in io.Reader = os.Stdin
	if path := cmd.String("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open query file: %w", err)
		}
		defer f.Close()
		in = f
	}

	queries, err := tasks.ReadQueries(in)
	if err != nil {
		return err
	}

	builder := r.builder
	if cmd.IsSet("workers") {
		builder = tasks.NewPlaylistBuilder(r.spotify, tasks.BuilderOpts{
			Workers:   cmd.Int("workers"),
			RateLimit: r.config.HTTP.RequestsPerSecond,
			Logger:    r.logger,
		})
	}

	prog := make(chan tasks.ProgressUpdate, 100)
	done := r.printProgress(prog)

	result, err := builder.Build(ctx, prog, name, queries, tasks.BuildOpts{
		Description: cmd.String("description"),
		Public:      cmd.Bool("public"),
		DryRun:      cmd.Bool("dry-run"),
	})
	close(prog)
	<-done

	if result != nil {
		if useJSON, pretty := wantsJSON(cmd); useJSON {
			if jerr := r.writeJSON(buildSummary(result), pretty); jerr != nil {
				return jerr
			}
		} else {
			r.writePlainln("Matched %d of %d queries (%d duplicates)", result.Found, len(queries), result.Duplicates)
			if result.Playlist != nil {
				r.writePlain("✓ Playlist %s (ID: %s) has %d tracks\n", result.Playlist.Name, result.Playlist.ID, len(result.URIs))
			}
		}
	}

	return err
}

// buildResult is the JSON shape of `playlist build`.
type buildResult struct {
	Playlist   *models.Playlist `json:"playlist,omitempty"`
	SnapshotID string           `json:"snapshot_id,omitempty"`
	Found      int              `json:"found"`
	Missed     []string         `json:"missed"`
	Duplicates int              `json:"duplicates"`
	URIs       []string         `json:"uris"`
}

func buildSummary(res *tasks.BuildResult) buildResult {
	out := buildResult{
		Playlist:   res.Playlist,
		SnapshotID: res.SnapshotID,
		Found:      res.Found,
		Missed:     []string{},
		Duplicates: res.Duplicates,
		URIs:       res.URIs,
	}
	for _, m := range res.Matches {
		if m.Track == nil {
			out.Missed = append(out.Missed, m.Query)
		}
	}
	return out
}

// PlaylistExport writes one or more playlists plus a manifest to the output directory.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()

	prog := make(chan tasks.ProgressUpdate, 100)
	done := r.printProgress(prog)

	result, err := r.builder.BulkExport(ctx, prog, ids, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		Covers:     cmd.Bool("covers"),
		HTTPClient: r.httpClient,
	})
	close(prog)
	<-done

	if err != nil {
		return err
	}

	if useJSON, pretty := wantsJSON(cmd); useJSON {
		return r.writeJSON(result, pretty)
	}

	r.writePlainln("Exported %d of %d playlists to %s", result.SuccessfulExports, result.TotalPlaylists, result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	if result.FailedExports > 0 {
		return fmt.Errorf("%d of %d playlists failed to export", result.FailedExports, result.TotalPlaylists)
	}
	return nil
}

// printProgress logs progress messages until prog is closed.
func (r *Runner) printProgress(prog <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return done
}

func requireArg(cmd *cli.Command, i int, what string) (string, error) {
	arg := strings.TrimSpace(cmd.Args().Get(i))
	if arg == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	return arg, nil
}

func playlistAndURIs(cmd *cli.Command) (string, []string, error) {
	id, err := requireArg(cmd, 0, "playlist id")
	if err != nil {
		return "", nil, err
	}

	uris := cmd.Args().Slice()[1:]
	if len(uris) == 0 {
		return "", nil, fmt.Errorf("%w: at least one track URI", shared.ErrMissingArgument)
	}
	return id, uris, nil
}
