package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string       // Export format: json, csv, markdown, txt
	OutputDir  string       // Base output directory (default: spotify_export_{epoch})
	NumWorkers int          // Concurrent file writers (default: builder workers)
	Covers     bool         // Download cover images for Markdown exports
	HTTPClient *http.Client // Used for cover downloads
}

// PlaylistExportJob is one fetched playlist waiting to be written.
type PlaylistExportJob struct {
	Index  int
	Export *models.PlaylistExport
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	Index        int      `json:"-"`
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Tracks       int      `json:"tracks"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and is written as the manifest.
type BulkExportResult struct {
	Format            string                 `json:"format"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	ExportedAt        time.Time              `json:"exported_at"`
	Results           []PlaylistExportResult `json:"results"`
}

// BulkExport exports multiple playlists with rate-limited fetching and concurrent writers.
//
// A producer fetches each playlist with all of its tracks, workers write the files. Partial failures are kept
// in the result and the manifest; only setup errors and cancellation are returned.
func (b *PlaylistBuilder) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no playlists to export", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = b.workers
	}
	opts.NumWorkers = min(opts.NumWorkers, maxWorkers)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Format:          opts.Format,
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(b.rate), 1)

	jobs := make(chan PlaylistExportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go b.exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(prog, fetchPlaylistUpdate(i+1, len(ids), id))
			export, err := b.fetchExport(ctx, id)
			if err != nil {
				results <- PlaylistExportResult{
					Index:        i,
					PlaylistID:   id,
					PlaylistName: fmt.Sprintf("Unknown (%s)", id),
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			jobs <- PlaylistExportJob{Index: i, Export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.ErrorMessage = res.Error.Error()
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		} else {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		}
		result.Results = append(result.Results, res)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	slices.SortFunc(result.Results, func(x, y PlaylistExportResult) int { return x.Index - y.Index })

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	return result, nil
}

func (b *PlaylistBuilder) fetchExport(ctx context.Context, id string) (*models.PlaylistExport, error) {
	pl, err := b.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	tracks, err := services.CollectPlaylistTracks(ctx, b.repo, id)
	if err != nil {
		return nil, err
	}

	return &models.PlaylistExport{Playlist: pl, Tracks: tracks}, nil
}

// exportWorker writes playlists from the jobs channel.
func (b *PlaylistBuilder) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- b.exportSinglePlaylist(ctx, job, opts)
	}
}

// exportSinglePlaylist writes one playlist in the requested format.
func (b *PlaylistBuilder) exportSinglePlaylist(ctx context.Context, j PlaylistExportJob, opts BulkExportOpts) PlaylistExportResult {
	pl := j.Export.Playlist
	result := PlaylistExportResult{
		Index:        j.Index,
		PlaylistID:   pl.ID,
		PlaylistName: pl.Name,
		Tracks:       len(j.Export.Tracks),
	}

	base := filepath.Join(opts.OutputDir, pl.ID)

	switch opts.Format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(j.Export, base)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{res.TracksFile, res.MetadataFile}

	case formatter.FormatMarkdown:
		var cover []byte
		if opts.Covers && len(pl.Images) > 0 {
			data, err := formatter.DownloadImage(ctx, opts.HTTPClient, pl.Images[0].URL)
			if err != nil {
				b.logger.Warn("failed to download cover image", "playlist", pl.ID, "error", err)
			}
			cover = data
		}

		res, err := formatter.WriteMarkdownExport(j.Export, base, cover)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = res.Files

	case formatter.FormatText:
		path, err := formatter.WriteTextExport(j.Export, base+"_tracks.txt")
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(j.Export, base+".json")
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}
