package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testutil"
)

// fakeRepo implements the parts of services.Repository the tasks use. Other methods panic.
type fakeRepo struct {
	services.Repository

	mu        sync.Mutex
	hits      map[string]models.Track // search query -> first hit
	searchErr map[string]error
	created   []services.PlaylistDetails
	added     [][]string
	addErr    error
	playlists map[string]models.Playlist
	items     map[string][]models.PlaylistTrack

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		hits:      map[string]models.Track{},
		searchErr: map[string]error{},
		playlists: map[string]models.Playlist{},
		items:     map[string][]models.PlaylistTrack{},
	}
}

func (f *fakeRepo) SearchTracks(ctx context.Context, query string, limit, offset int) (models.SearchTrackResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.searchErr[query]; err != nil {
		return models.SearchTrackResult{}, err
	}

	result := models.SearchTrackResult{Query: query}
	if t, ok := f.hits[query]; ok {
		result.Tracks.Items = []models.Track{t}
		result.Tracks.Total = 1
	}
	return result, nil
}

func (f *fakeRepo) CreatePlaylist(ctx context.Context, details services.PlaylistDetails) (models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, details)
	return models.Playlist{ID: "new-pl", Name: details.Name}, nil
}

func (f *fakeRepo) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, uris)
	return "snap-1", nil
}

func (f *fakeRepo) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl, ok := f.playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return pl, nil
}

func (f *fakeRepo) GetPlaylistTracks(ctx context.Context, id string, limit, offset int) (models.Page[models.PlaylistTrack], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.items[id]
	end := min(offset+limit, len(items))
	page := models.Page[models.PlaylistTrack]{Items: items[offset:end], Total: len(items), Limit: limit, Offset: offset}
	page.HasNext = end < len(items)
	return page, nil
}

func track(id, name, artist string) models.Track {
	return models.Track{ID: id, Name: name, URI: "spotify:track:" + id, Artists: []models.Artist{{Name: artist}}}
}

func fastBuilder(repo services.Repository, workers int) *PlaylistBuilder {
	return NewPlaylistBuilder(repo, BuilderOpts{Workers: workers, RateLimit: 1000})
}

func TestSearchQuery(t *testing.T) {
	tc := []struct {
		in, want string
	}{
		{"So What - Miles Davis", `track:"So What" artist:"Miles Davis"`},
		{"  Blue in Green -  Bill Evans ", `track:"Blue in Green" artist:"Bill Evans"`},
		{"just some words", "just some words"},
		{" - Artist Only", "- Artist Only"},
		{"Title Only - ", "Title Only -"},
		{"A-ha - Take On Me", `track:"A-ha" artist:"Take On Me"`},
	}

	for _, tt := range tc {
		if got := SearchQuery(tt.in); got != tt.want {
			t.Errorf("SearchQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadQueries(t *testing.T) {
	t.Run("Skips Blank And Comments", func(t *testing.T) {
		input := "# my list\nSo What - Miles Davis\n\n   \n  Naima - John Coltrane  \n#skip\n"

		queries, err := ReadQueries(strings.NewReader(input))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(queries) != 2 || queries[0] != "So What - Miles Davis" || queries[1] != "Naima - John Coltrane" {
			t.Errorf("unexpected queries %q", queries)
		}
	})

	t.Run("Read Error", func(t *testing.T) {
		if _, err := ReadQueries(&tu.FCloser{}); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestPlaylistBuilderBuild(t *testing.T) {
	ctx := context.Background()

	setup := func() *fakeRepo {
		repo := newFakeRepo()
		repo.hits[SearchQuery("So What - Miles Davis")] = track("t1", "So What", "Miles Davis")
		repo.hits[SearchQuery("Blue in Green - Miles Davis")] = track("t2", "Blue in Green", "Miles Davis")
		repo.hits[SearchQuery("Naima - John Coltrane")] = track("t3", "Naima", "John Coltrane")
		return repo
	}

	t.Run("Success", func(t *testing.T) {
		repo := setup()
		prog := make(chan ProgressUpdate, 32)
		queries := []string{"So What - Miles Davis", "Nope - Nobody", "Blue in Green - Miles Davis", "So What - Miles Davis", "Naima - John Coltrane"}

		result, err := fastBuilder(repo, 3).Build(ctx, prog, "Jazz", queries, BuildOpts{Description: "built", Public: false})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Found != 4 || result.Missed != 1 || result.Duplicates != 1 {
			t.Errorf("unexpected counts found=%d missed=%d dup=%d", result.Found, result.Missed, result.Duplicates)
		}
		if got := strings.Join(result.URIs, ","); got != "spotify:track:t1,spotify:track:t2,spotify:track:t3" {
			t.Errorf("expected input order, got %s", got)
		}
		for i, m := range result.Matches {
			if m.Query != queries[i] {
				t.Errorf("match %d out of order: %q", i, m.Query)
			}
		}
		if result.Matches[1].Track != nil {
			t.Error("expected a miss for the unknown query")
		}

		if result.Playlist == nil || result.Playlist.ID != "new-pl" || result.SnapshotID != "snap-1" {
			t.Errorf("unexpected playlist result %+v", result)
		}
		if len(repo.created) != 1 || repo.created[0].Name != "Jazz" || *repo.created[0].Description != "built" || *repo.created[0].Public {
			t.Errorf("unexpected create call %+v", repo.created)
		}
		if len(repo.added) != 1 || len(repo.added[0]) != 3 {
			t.Errorf("unexpected add calls %+v", repo.added)
		}

		close(prog)
		phases := map[Phase]int{}
		for u := range prog {
			phases[u.Phase]++
		}
		if phases[SearchTracks] != len(queries) || phases[CreatePlaylist] != 1 || phases[AddTracks] != 1 {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("Worker Limit", func(t *testing.T) {
		repo := setup()
		queries := make([]string, 12)
		for i := range queries {
			queries[i] = "So What - Miles Davis"
		}

		if _, err := fastBuilder(repo, 2).Build(ctx, nil, "Loop", queries, BuildOpts{DryRun: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m := repo.maxInFlight.Load(); m > 2 {
			t.Errorf("expected at most 2 concurrent searches, got %d", m)
		}
	})

	t.Run("Search Error Is Recorded", func(t *testing.T) {
		repo := setup()
		repo.searchErr[SearchQuery("Naima - John Coltrane")] = fmt.Errorf("%w: boom", shared.ErrAPIRequest)

		result, err := fastBuilder(repo, 2).Build(ctx, nil, "Mix", []string{"So What - Miles Davis", "Naima - John Coltrane"}, BuildOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Matches[1].Err == nil || result.Missed != 1 {
			t.Errorf("expected recorded search error, got %+v", result.Matches[1])
		}
	})

	t.Run("Auth Error Aborts", func(t *testing.T) {
		repo := setup()
		repo.searchErr[SearchQuery("So What - Miles Davis")] = shared.ErrUnauthorized

		_, err := fastBuilder(repo, 1).Build(ctx, nil, "Mix", []string{"So What - Miles Davis", "Naima - John Coltrane"}, BuildOpts{})
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if len(repo.created) != 0 {
			t.Error("nothing should be created after a fatal error")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		repo := setup()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := fastBuilder(repo, 1).Build(cctx, nil, "Mix", []string{"So What - Miles Davis"}, BuildOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Nothing Matched", func(t *testing.T) {
		repo := setup()

		result, err := fastBuilder(repo, 1).Build(ctx, nil, "Mix", []string{"Nope - Nobody"}, BuildOpts{})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if result == nil || result.Missed != 1 || len(repo.created) != 0 {
			t.Errorf("expected a miss and no playlist, got %+v", result)
		}
	})

	t.Run("Dry Run", func(t *testing.T) {
		repo := setup()

		result, err := fastBuilder(repo, 1).Build(ctx, nil, "Mix", []string{"So What - Miles Davis"}, BuildOpts{DryRun: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Playlist != nil || len(repo.created) != 0 || len(result.URIs) != 1 {
			t.Errorf("dry run should only search, got %+v", result)
		}
	})

	t.Run("Add Failure Keeps Playlist", func(t *testing.T) {
		repo := setup()
		repo.addErr = shared.ErrNetwork

		result, err := fastBuilder(repo, 1).Build(ctx, nil, "Mix", []string{"So What - Miles Davis"}, BuildOpts{})
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
		if result == nil || result.Playlist == nil {
			t.Error("expected the created playlist in the result")
		}
	})

	t.Run("Validation", func(t *testing.T) {
		b := fastBuilder(setup(), 1)

		if _, err := b.Build(ctx, nil, " ", []string{"x"}, BuildOpts{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument for empty name, got %v", err)
		}
		if _, err := b.Build(ctx, nil, "Mix", nil, BuildOpts{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument for no queries, got %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		b := NewPlaylistBuilder(setup(), BuilderOpts{Workers: 50})
		if b.workers != 10 || b.rate != 5 {
			t.Errorf("expected clamp to 10 workers at 5 req/s, got workers=%d rate=%v", b.workers, b.rate)
		}

		b = NewPlaylistBuilder(setup(), BuilderOpts{})
		if b.workers != 4 {
			t.Errorf("expected 4 workers by default, got %d", b.workers)
		}
	})
}

func TestPlaylistBuilderBulkExport(t *testing.T) {
	ctx := context.Background()

	setup := func() *fakeRepo {
		repo := newFakeRepo()
		for i := 1; i <= 3; i++ {
			id := fmt.Sprintf("playlist%d", i)
			repo.playlists[id] = models.Playlist{ID: id, Name: fmt.Sprintf("Playlist %d", i)}
			for j := range 150 {
				repo.items[id] = append(repo.items[id], models.PlaylistTrack{Track: track(fmt.Sprintf("%s-%d", id, j), "Song", "Artist")})
			}
		}
		return repo
	}

	tests := []struct {
		name      string
		format    string
		wantFiles int
		wantPath  string
	}{
		{"json", "json", 1, "playlist1.json"},
		{"csv", "csv", 2, "playlist1_tracks.csv"},
		{"markdown", "md", 1, filepath.Join("playlist1", "README.md")},
		{"text", "txt", 1, "playlist1_tracks.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			prog := make(chan ProgressUpdate, 64)

			result, err := fastBuilder(setup(), 2).BulkExport(ctx, prog, []string{"playlist1", "playlist2", "playlist3"}, BulkExportOpts{Format: tt.format, OutputDir: dir})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.SuccessfulExports != 3 || result.FailedExports != 0 {
				t.Errorf("unexpected counts %d/%d", result.SuccessfulExports, result.FailedExports)
			}
			for i, res := range result.Results {
				if res.PlaylistID != fmt.Sprintf("playlist%d", i+1) {
					t.Errorf("results not in input order: %d is %s", i, res.PlaylistID)
				}
				if len(res.Files) != tt.wantFiles || res.Tracks != 150 {
					t.Errorf("unexpected result %+v", res)
				}
			}

			tu.AssertFileExists(t, filepath.Join(dir, tt.wantPath))
			tu.AssertFileExists(t, result.ManifestPath)
		})
	}

	t.Run("Partial Failure", func(t *testing.T) {
		dir := t.TempDir()

		result, err := fastBuilder(setup(), 2).BulkExport(ctx, nil, []string{"playlist1", "missing"}, BulkExportOpts{OutputDir: dir})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SuccessfulExports != 1 || result.FailedExports != 1 {
			t.Errorf("unexpected counts %d/%d", result.SuccessfulExports, result.FailedExports)
		}

		data, err := os.ReadFile(result.ManifestPath)
		if err != nil {
			t.Fatalf("failed to read manifest: %v", err)
		}

		var manifest BulkExportResult
		if err := json.Unmarshal(data, &manifest); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}
		if manifest.Results[1].ErrorMessage == "" || manifest.Results[1].Success {
			t.Errorf("expected failure recorded in manifest, got %+v", manifest.Results[1])
		}
	})

	t.Run("Invalid Format", func(t *testing.T) {
		_, err := fastBuilder(setup(), 1).BulkExport(ctx, nil, []string{"playlist1"}, BulkExportOpts{Format: "xml", OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("No IDs", func(t *testing.T) {
		_, err := fastBuilder(setup(), 1).BulkExport(ctx, nil, nil, BulkExportOpts{})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
