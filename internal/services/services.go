package services

import (
	"context"

	"github.com/desertthunder/nowplaying/internal/models"
)

// Repository is the operation surface handed to the rest of the application.
//
// Every method returns domain values from package models; wire DTOs never leave this package.
type Repository interface {
	// GetCurrentPlayback returns the player state, or nil when there is no active device.
	GetCurrentPlayback(ctx context.Context) (*models.CurrentPlayback, error)

	// GetRecentlyPlayed returns the most recent plays, newest first.
	GetRecentlyPlayed(ctx context.Context, limit int) (models.RecentlyPlayed, error)

	GetTopArtists(ctx context.Context, r models.TimeRange, limit, offset int) (models.Page[models.Artist], error)
	GetTopTracks(ctx context.Context, r models.TimeRange, limit, offset int) (models.Page[models.Track], error)

	GetDevices(ctx context.Context) ([]models.Device, error)

	// Player controls. An empty deviceID targets the active device.
	Play(ctx context.Context, opts PlayOptions) error
	Pause(ctx context.Context, deviceID string) error
	NextTrack(ctx context.Context, deviceID string) error
	PreviousTrack(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, positionMs int, deviceID string) error
	SetShuffle(ctx context.Context, state bool, deviceID string) error
	SetRepeat(ctx context.Context, state models.RepeatState, deviceID string) error

	GetCurrentUser(ctx context.Context) (models.User, error)

	GetPlaylists(ctx context.Context, limit, offset int) (models.Page[models.Playlist], error)
	GetPlaylist(ctx context.Context, playlistID string) (models.Playlist, error)
	GetPlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (models.Page[models.PlaylistTrack], error)

	// CreatePlaylist creates a playlist owned by the signed-in user.
	CreatePlaylist(ctx context.Context, details PlaylistDetails) (models.Playlist, error)
	UpdatePlaylist(ctx context.Context, playlistID string, details PlaylistDetails) error

	// AddTracks appends track URIs in batches and returns the final snapshot id.
	AddTracks(ctx context.Context, playlistID string, uris []string) (string, error)
	// RemoveTracks removes every occurrence of the given URIs and returns the final snapshot id.
	RemoveTracks(ctx context.Context, playlistID string, uris []string) (string, error)

	// DeletePlaylist unfollows the playlist, which is how Spotify deletes one the user owns.
	DeletePlaylist(ctx context.Context, playlistID string) error

	SearchTracks(ctx context.Context, query string, limit, offset int) (models.SearchTrackResult, error)
}

// Reauthorizer renews the session after the API rejects the current token.
type Reauthorizer interface {
	RenewSession(ctx context.Context) error
}

// PlayOptions selects what to play. The zero value resumes playback.
type PlayOptions struct {
	DeviceID   string
	ContextURI string   // album, artist or playlist
	URIs       []string // tracks; ignored when ContextURI is set
	Offset     *int     // position within the context or URIs
	PositionMs int
}

// PlaylistDetails are the editable playlist fields. Nil pointers are left unchanged on update.
type PlaylistDetails struct {
	Name          string
	Description   *string
	Public        *bool
	Collaborative *bool
}
