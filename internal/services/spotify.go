// Spotify Web API implementation of [Repository]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/api"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	// DefaultBaseURL is the Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	defaultLimit      = 20
	maxLimit          = 50
	maxPlaylistItems  = 100
	trackBatchSize    = 100
	maxSearchQueryLen = 250
)

// RepositoryOpts configures a [SpotifyRepository].
type RepositoryOpts struct {
	Pipeline     *api.Pipeline
	BaseURL      string
	Reauthorizer Reauthorizer // optional; without it a 401 is returned as is
	Logger       *log.Logger
}

// SpotifyRepository implements [Repository] over the request pipeline.
//
// A 401 triggers one session renewal and one retry of the same operation.
type SpotifyRepository struct {
	pipeline *api.Pipeline
	baseURL  string
	reauth   Reauthorizer
	logger   *log.Logger
}

// NewSpotifyRepository creates a [SpotifyRepository].
func NewSpotifyRepository(opts RepositoryOpts) *SpotifyRepository {
	if opts.Pipeline == nil {
		opts.Pipeline = api.New(api.Options{})
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	return &SpotifyRepository{
		pipeline: opts.Pipeline,
		baseURL:  opts.BaseURL,
		reauth:   opts.Reauthorizer,
		logger:   opts.Logger,
	}
}

// send performs ep, renewing the session and retrying once when the token is rejected.
func (s *SpotifyRepository) send(ctx context.Context, ep api.Endpoint, out any) error {
	err := s.pipeline.Send(ctx, ep, out)
	if err == nil || s.reauth == nil || !errors.Is(err, shared.ErrUnauthorized) {
		return err
	}

	s.logger.Info("access token rejected, renewing session", "endpoint", ep.Path)
	if rerr := s.reauth.RenewSession(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}

	return s.pipeline.Send(ctx, ep, out)
}

func get[T any](ctx context.Context, s *SpotifyRepository, path string, params url.Values) (T, error) {
	var out T
	err := s.send(ctx, api.Get(s.baseURL, path, params), &out)
	return out, err
}

func (s *SpotifyRepository) endpoint(method, path string, params url.Values, body any) api.Endpoint {
	return api.Endpoint{BaseURL: s.baseURL, Path: path, Method: method, Parameters: params, Body: body}
}

// GetCurrentPlayback returns nil when Spotify answers 204 or an empty 200 (no active device).
func (s *SpotifyRepository) GetCurrentPlayback(ctx context.Context) (*models.CurrentPlayback, error) {
	ep := api.Get(s.baseURL, "/me/player", url.Values{"additional_types": {"track"}})
	ep.AllowEmpty = true

	var dto *SpotifyPlaybackState
	if err := s.send(ctx, ep, &dto); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, nil
	}

	pb := MapCurrentPlayback(*dto)
	return &pb, nil
}

// GetRecentlyPlayed returns up to limit plays.
func (s *SpotifyRepository) GetRecentlyPlayed(ctx context.Context, limit int) (models.RecentlyPlayed, error) {
	dto, err := get[SpotifyRecentlyPlayed](ctx, s, "/me/player/recently-played", url.Values{
		"limit": {strconv.Itoa(clampLimit(limit, maxLimit))},
	})
	if err != nil {
		return models.RecentlyPlayed{}, err
	}
	return MapRecentlyPlayed(dto), nil
}

// GetTopArtists returns the user's top artists in r.
func (s *SpotifyRepository) GetTopArtists(ctx context.Context, r models.TimeRange, limit, offset int) (models.Page[models.Artist], error) {
	params, err := topParams(r, limit, offset)
	if err != nil {
		return models.Page[models.Artist]{}, err
	}

	dto, err := get[SpotifyPaging[SpotifyArtist]](ctx, s, "/me/top/artists", params)
	if err != nil {
		return models.Page[models.Artist]{}, err
	}
	return MapPage(dto, All(MapArtist)), nil
}

// GetTopTracks returns the user's top tracks in r.
func (s *SpotifyRepository) GetTopTracks(ctx context.Context, r models.TimeRange, limit, offset int) (models.Page[models.Track], error) {
	params, err := topParams(r, limit, offset)
	if err != nil {
		return models.Page[models.Track]{}, err
	}

	dto, err := get[SpotifyPaging[SpotifyTrack]](ctx, s, "/me/top/tracks", params)
	if err != nil {
		return models.Page[models.Track]{}, err
	}
	return MapPage(dto, All(MapTrack)), nil
}

// GetDevices lists the user's Connect devices.
func (s *SpotifyRepository) GetDevices(ctx context.Context) ([]models.Device, error) {
	dto, err := get[SpotifyDevices](ctx, s, "/me/player/devices", nil)
	if err != nil {
		return nil, err
	}

	devices := make([]models.Device, len(dto.Devices))
	for i, d := range dto.Devices {
		devices[i] = MapDevice(d)
	}
	return devices, nil
}

type playBody struct {
	ContextURI string         `json:"context_uri,omitempty"`
	URIs       []string       `json:"uris,omitempty"`
	Offset     map[string]int `json:"offset,omitempty"`
	PositionMs int            `json:"position_ms,omitempty"`
}

// Play starts or resumes playback.
func (s *SpotifyRepository) Play(ctx context.Context, opts PlayOptions) error {
	if opts.PositionMs < 0 {
		return fmt.Errorf("%w: position must not be negative", shared.ErrInvalidArgument)
	}

	body := playBody{ContextURI: opts.ContextURI, PositionMs: opts.PositionMs}
	if opts.ContextURI == "" {
		body.URIs = opts.URIs
	}
	if opts.Offset != nil {
		if *opts.Offset < 0 {
			return fmt.Errorf("%w: offset must not be negative", shared.ErrInvalidArgument)
		}
		body.Offset = map[string]int{"position": *opts.Offset}
	}

	var payload any
	if body.ContextURI != "" || len(body.URIs) > 0 || body.Offset != nil || body.PositionMs > 0 {
		payload = body
	}

	return s.send(ctx, s.endpoint(http.MethodPut, "/me/player/play", deviceParams(opts.DeviceID), payload), nil)
}

// Pause pauses playback.
func (s *SpotifyRepository) Pause(ctx context.Context, deviceID string) error {
	return s.send(ctx, s.endpoint(http.MethodPut, "/me/player/pause", deviceParams(deviceID), nil), nil)
}

// NextTrack skips forward.
func (s *SpotifyRepository) NextTrack(ctx context.Context, deviceID string) error {
	return s.send(ctx, s.endpoint(http.MethodPost, "/me/player/next", deviceParams(deviceID), nil), nil)
}

// PreviousTrack skips back.
func (s *SpotifyRepository) PreviousTrack(ctx context.Context, deviceID string) error {
	return s.send(ctx, s.endpoint(http.MethodPost, "/me/player/previous", deviceParams(deviceID), nil), nil)
}

// Seek moves to positionMs in the current item.
func (s *SpotifyRepository) Seek(ctx context.Context, positionMs int, deviceID string) error {
	if positionMs < 0 {
		return fmt.Errorf("%w: position must not be negative", shared.ErrInvalidArgument)
	}

	params := deviceParams(deviceID)
	params.Set("position_ms", strconv.Itoa(positionMs))
	return s.send(ctx, s.endpoint(http.MethodPut, "/me/player/seek", params, nil), nil)
}

// SetShuffle toggles shuffle.
func (s *SpotifyRepository) SetShuffle(ctx context.Context, state bool, deviceID string) error {
	params := deviceParams(deviceID)
	params.Set("state", strconv.FormatBool(state))
	return s.send(ctx, s.endpoint(http.MethodPut, "/me/player/shuffle", params, nil), nil)
}

// SetRepeat sets the repeat mode.
func (s *SpotifyRepository) SetRepeat(ctx context.Context, state models.RepeatState, deviceID string) error {
	switch state {
	case models.RepeatOff, models.RepeatTrack, models.RepeatContext:
	default:
		return fmt.Errorf("%w: repeat state %q", shared.ErrInvalidArgument, state)
	}

	params := deviceParams(deviceID)
	params.Set("state", string(state))
	return s.send(ctx, s.endpoint(http.MethodPut, "/me/player/repeat", params, nil), nil)
}

// GetCurrentUser retrieves the signed-in user's profile.
func (s *SpotifyRepository) GetCurrentUser(ctx context.Context) (models.User, error) {
	dto, err := get[SpotifyUser](ctx, s, "/me", nil)
	if err != nil {
		return models.User{}, err
	}
	return MapUser(dto), nil
}

// GetPlaylists retrieves one page of the user's playlists.
func (s *SpotifyRepository) GetPlaylists(ctx context.Context, limit, offset int) (models.Page[models.Playlist], error) {
	dto, err := get[SpotifyPaging[SpotifyPlaylist]](ctx, s, "/me/playlists", pageParams(limit, offset, maxLimit))
	if err != nil {
		return models.Page[models.Playlist]{}, err
	}
	return MapPage(dto, All(MapPlaylist)), nil
}

// GetPlaylist retrieves playlist metadata by ID.
func (s *SpotifyRepository) GetPlaylist(ctx context.Context, playlistID string) (models.Playlist, error) {
	if err := requireID(playlistID); err != nil {
		return models.Playlist{}, err
	}

	dto, err := get[SpotifyPlaylist](ctx, s, "/playlists/"+url.PathEscape(playlistID), nil)
	if err != nil {
		return models.Playlist{}, err
	}
	return MapPlaylist(dto), nil
}

// GetPlaylistTracks retrieves one page of playlist items. Local and unavailable items are skipped.
func (s *SpotifyRepository) GetPlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (models.Page[models.PlaylistTrack], error) {
	if err := requireID(playlistID); err != nil {
		return models.Page[models.PlaylistTrack]{}, err
	}

	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	dto, err := get[SpotifyPaging[SpotifyPlaylistTrack]](ctx, s, path, pageParams(limit, offset, maxPlaylistItems))
	if err != nil {
		return models.Page[models.PlaylistTrack]{}, err
	}
	return MapPage(dto, MapPlaylistTrack), nil
}

type playlistBody struct {
	Name          string  `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Public        *bool   `json:"public,omitempty"`
	Collaborative *bool   `json:"collaborative,omitempty"`
}

func (d PlaylistDetails) body() playlistBody {
	return playlistBody{Name: d.Name, Description: d.Description, Public: d.Public, Collaborative: d.Collaborative}
}

// CreatePlaylist creates a playlist for the signed-in user.
func (s *SpotifyRepository) CreatePlaylist(ctx context.Context, details PlaylistDetails) (models.Playlist, error) {
	if strings.TrimSpace(details.Name) == "" {
		return models.Playlist{}, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	user, err := s.GetCurrentUser(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to resolve playlist owner: %w", err)
	}

	var dto SpotifyPlaylist
	path := "/users/" + url.PathEscape(user.ID) + "/playlists"
	if err := s.send(ctx, s.endpoint(http.MethodPost, path, nil, details.body()), &dto); err != nil {
		return models.Playlist{}, err
	}
	return MapPlaylist(dto), nil
}

// UpdatePlaylist changes the fields set in details.
func (s *SpotifyRepository) UpdatePlaylist(ctx context.Context, playlistID string, details PlaylistDetails) error {
	if err := requireID(playlistID); err != nil {
		return err
	}

	body := details.body()
	if body == (playlistBody{}) {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	return s.send(ctx, s.endpoint(http.MethodPut, "/playlists/"+url.PathEscape(playlistID), nil, body), nil)
}

// AddTracks appends uris in batches of 100, preserving order.
func (s *SpotifyRepository) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if err := requireID(playlistID); err != nil {
		return "", err
	}

	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	var snapshot string
	for batch := range slices.Chunk(uris, trackBatchSize) {
		var out SpotifySnapshot
		body := map[string][]string{"uris": batch}
		if err := s.send(ctx, s.endpoint(http.MethodPost, path, nil, body), &out); err != nil {
			return snapshot, err
		}
		snapshot = out.SnapshotID
	}

	return snapshot, nil
}

type trackRef struct {
	URI string `json:"uri"`
}

// RemoveTracks removes uris in batches of 100.
func (s *SpotifyRepository) RemoveTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	if err := requireID(playlistID); err != nil {
		return "", err
	}

	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	var snapshot string
	for batch := range slices.Chunk(uris, trackBatchSize) {
		refs := make([]trackRef, len(batch))
		for i, uri := range batch {
			refs[i] = trackRef{URI: uri}
		}

		var out SpotifySnapshot
		body := map[string][]trackRef{"tracks": refs}
		if err := s.send(ctx, s.endpoint(http.MethodDelete, path, nil, body), &out); err != nil {
			return snapshot, err
		}
		snapshot = out.SnapshotID
	}

	return snapshot, nil
}

// DeletePlaylist unfollows the playlist.
func (s *SpotifyRepository) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := requireID(playlistID); err != nil {
		return err
	}
	return s.send(ctx, s.endpoint(http.MethodDelete, "/playlists/"+url.PathEscape(playlistID)+"/followers", nil, nil), nil)
}

// SearchTracks searches the catalog for tracks matching query.
func (s *SpotifyRepository) SearchTracks(ctx context.Context, query string, limit, offset int) (models.SearchTrackResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.SearchTrackResult{}, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	query = shared.Truncate(query, maxSearchQueryLen)

	params := pageParams(limit, offset, maxLimit)
	params.Set("q", query)
	params.Set("type", "track")

	dto, err := get[SpotifySearchResponse](ctx, s, "/search", params)
	if err != nil {
		return models.SearchTrackResult{}, err
	}
	return MapSearchTrackResult(query, dto), nil
}

// CollectPlaylistTracks pages through every item of a playlist.
func CollectPlaylistTracks(ctx context.Context, repo Repository, playlistID string) ([]models.PlaylistTrack, error) {
	var all []models.PlaylistTrack
	offset := 0

	for {
		page, err := repo.GetPlaylistTracks(ctx, playlistID, maxPlaylistItems, offset)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Items...)
		if !page.HasNext || page.Limit <= 0 {
			break
		}
		offset += page.Limit
	}

	return all, nil
}

func clampLimit(limit, ceiling int) int {
	switch {
	case limit <= 0:
		return min(defaultLimit, ceiling)
	case limit > ceiling:
		return ceiling
	default:
		return limit
	}
}

func pageParams(limit, offset, ceiling int) url.Values {
	return url.Values{
		"limit":  {strconv.Itoa(clampLimit(limit, ceiling))},
		"offset": {strconv.Itoa(max(offset, 0))},
	}
}

func topParams(r models.TimeRange, limit, offset int) (url.Values, error) {
	if r == "" {
		r = models.MediumTerm
	}
	if !r.Valid() {
		return nil, fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, r)
	}

	params := pageParams(limit, offset, maxLimit)
	params.Set("time_range", string(r))
	return params, nil
}

func deviceParams(deviceID string) url.Values {
	params := url.Values{}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}
	return params
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return nil
}
