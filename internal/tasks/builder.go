package tasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 4
	maxWorkers       = 10
	defaultRateLimit = 5.0
)

// QueryMatch is the outcome of searching one input line.
type QueryMatch struct {
	Query string        // input line as given
	Track *models.Track // first hit, nil on a miss
	Err   error         // non-fatal search error
}

// BuildOpts configures one [PlaylistBuilder.Build] run.
type BuildOpts struct {
	Description string
	Public      bool
	DryRun      bool // search only, create nothing
}

// BuildResult summarizes a build.
type BuildResult struct {
	Playlist   *models.Playlist // nil on a dry run or when nothing matched
	SnapshotID string
	Matches    []QueryMatch // one per query, in input order
	URIs       []string     // unique matched track URIs, in input order
	Found      int
	Missed     int
	Duplicates int
}

// BuilderOpts configures a [PlaylistBuilder].
type BuilderOpts struct {
	Workers   int     // concurrent searches (default 4, max 10)
	RateLimit float64 // requests per second (default 5)
	Logger    *log.Logger
}

// PlaylistBuilder runs multi-request playlist operations against a [services.Repository].
type PlaylistBuilder struct {
	repo    services.Repository
	workers int
	rate    float64
	logger  *log.Logger
}

// NewPlaylistBuilder creates a [PlaylistBuilder].
func NewPlaylistBuilder(repo services.Repository, opts BuilderOpts) *PlaylistBuilder {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	return &PlaylistBuilder{repo: repo, workers: opts.Workers, rate: opts.RateLimit, logger: opts.Logger}
}

// Build searches every query, then creates playlist name with the first hit of each.
//
// A miss or a per-query search error is recorded in the result. Cancellation and authentication errors abort
// the whole run. When no query matches, nothing is created and the error wraps [shared.ErrNotFound].
func (b *PlaylistBuilder) Build(ctx context.Context, prog chan<- ProgressUpdate, name string, queries []string, opts BuildOpts) (*BuildResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: no queries to search", shared.ErrMissingArgument)
	}

	matches, err := b.search(ctx, prog, queries)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Matches: matches}
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Track == nil {
			result.Missed++
			continue
		}

		result.Found++
		if seen[m.Track.URI] {
			result.Duplicates++
			continue
		}
		seen[m.Track.URI] = true
		result.URIs = append(result.URIs, m.Track.URI)
	}

	b.logger.Info("search finished", "found", result.Found, "missed", result.Missed, "duplicates", result.Duplicates)

	if len(result.URIs) == 0 {
		return result, fmt.Errorf("%w: none of the %d queries matched a track", shared.ErrNotFound, len(queries))
	}
	if opts.DryRun {
		return result, nil
	}

	details := services.PlaylistDetails{Name: name, Public: &opts.Public}
	if opts.Description != "" {
		details.Description = &opts.Description
	}

	pl, err := b.repo.CreatePlaylist(ctx, details)
	if err != nil {
		return result, fmt.Errorf("failed to create playlist: %w", err)
	}
	result.Playlist = &pl
	sendProgress(prog, createPlaylistUpdate(&pl))

	sendProgress(prog, addTracksUpdate(len(result.URIs)))
	snapshot, err := b.repo.AddTracks(ctx, pl.ID, result.URIs)
	if err != nil {
		return result, fmt.Errorf("playlist %s created but adding tracks failed: %w", pl.ID, err)
	}
	result.SnapshotID = snapshot

	return result, nil
}

func (b *PlaylistBuilder) search(ctx context.Context, prog chan<- ProgressUpdate, queries []string) ([]QueryMatch, error) {
	limiter := rate.NewLimiter(rate.Limit(b.rate), 1)
	matches := make([]QueryMatch, len(queries))

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, q := range queries {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}

			m := QueryMatch{Query: q}
			res, err := b.repo.SearchTracks(gctx, SearchQuery(q), 1, 0)
			switch {
			case err != nil && isFatal(err):
				return fmt.Errorf("search %q: %w", q, err)
			case err != nil:
				b.logger.Warn("search failed", "query", q, "error", err)
				m.Err = err
			case len(res.Tracks.Items) > 0:
				track := res.Tracks.Items[0]
				m.Track = &track
			}

			matches[i] = m
			sendProgress(prog, searchMatchUpdate(int(done.Add(1)), len(queries), m))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matches, nil
}

func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, shared.ErrTimeout) ||
		errors.Is(err, shared.ErrUnauthorized) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenInvalid)
}

// SearchQuery turns a "title - artist" line into a field-filtered search. Other lines are used as is.
func SearchQuery(line string) string {
	line = strings.TrimSpace(line)

	title, artist, ok := strings.Cut(line, " - ")
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if !ok || title == "" || artist == "" {
		return line
	}

	return fmt.Sprintf("track:%q artist:%q", title, artist)
}

// ReadQueries reads one query per line, skipping blank lines and lines starting with "#".
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}

	return queries, nil
}
