// Spotify Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
//
// Optional fields are pointers so a missing value can be told apart from a zero value.
package services

type followers struct {
	Total int `json:"total"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyImage represents an image resource. Width and height are null for some user images.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// SpotifyArtist represents a Spotify artist, simplified or full.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Images     []SpotifyImage `json:"images"`
	Popularity int            `json:"popularity"`
	Followers  *followers     `json:"followers"`
	URI        string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"`
	Artists              []SpotifyArtist `json:"artists"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	Images               []SpotifyImage  `json:"images"`
	URI                  string          `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	TrackNumber int             `json:"track_number"`
	IsLocal     bool            `json:"is_local"`
	Type        string          `json:"type"`
	URI         string          `json:"uri"`
}

// SpotifyDevice represents a Spotify Connect device.
type SpotifyDevice struct {
	ID               *string `json:"id"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	IsActive         bool    `json:"is_active"`
	IsPrivateSession bool    `json:"is_private_session"`
	IsRestricted     bool    `json:"is_restricted"`
	VolumePercent    *int    `json:"volume_percent"`
}

// SpotifyDevices is the body of GET /me/player/devices.
type SpotifyDevices struct {
	Devices []SpotifyDevice `json:"devices"`
}

// SpotifyContext is the context playback was started from.
type SpotifyContext struct {
	Type string `json:"type"`
	Href string `json:"href"`
	URI  string `json:"uri"`
}

// SpotifyPlaybackState is the body of GET /me/player.
//
// Item is null for ads and between tracks; it holds an episode when currently_playing_type is "episode".
type SpotifyPlaybackState struct {
	Device               SpotifyDevice   `json:"device"`
	RepeatState          *string         `json:"repeat_state"`
	ShuffleState         *bool           `json:"shuffle_state"`
	Context              *SpotifyContext `json:"context"`
	Timestamp            int64           `json:"timestamp"`
	ProgressMS           *int            `json:"progress_ms"`
	IsPlaying            bool            `json:"is_playing"`
	Item                 *SpotifyTrack   `json:"item"`
	CurrentlyPlayingType string          `json:"currently_playing_type"`
}

// SpotifyPlayHistory is one item of GET /me/player/recently-played.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack    `json:"track"`
	PlayedAt string          `json:"played_at"`
	Context  *SpotifyContext `json:"context"`
}

// SpotifyCursors are the millisecond cursors of a cursor page.
type SpotifyCursors struct {
	After  *string `json:"after"`
	Before *string `json:"before"`
}

// SpotifyRecentlyPlayed is the cursor page returned for listening history.
type SpotifyRecentlyPlayed struct {
	Href    string               `json:"href"`
	Limit   int                  `json:"limit"`
	Next    *string              `json:"next"`
	Cursors *SpotifyCursors      `json:"cursors"`
	Total   int                  `json:"total"`
	Items   []SpotifyPlayHistory `json:"items"`
}

// SpotifyPaging is Spotify's offset page envelope.
type SpotifyPaging[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// SpotifyOwner is a playlist owner. display_name may be null.
type SpotifyOwner struct {
	ID          string  `json:"id"`
	DisplayName *string `json:"display_name"`
	URI         string  `json:"uri"`
}

type playlistTracksRef struct {
	Href  string `json:"href"`
	Total int    `json:"total"`
}

// SpotifyPlaylist represents a simplified or full playlist. public is null for some collaborative playlists.
type SpotifyPlaylist struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   *string           `json:"description"`
	Owner         SpotifyOwner      `json:"owner"`
	Public        *bool             `json:"public"`
	Collaborative bool              `json:"collaborative"`
	SnapshotID    string            `json:"snapshot_id"`
	Tracks        playlistTracksRef `json:"tracks"`
	Images        []SpotifyImage    `json:"images"`
	URI           string            `json:"uri"`
}

type addedBy struct {
	ID string `json:"id"`
}

// SpotifyPlaylistTrack is a playlist item. Track is null for removed or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt *string       `json:"added_at"`
	AddedBy *addedBy      `json:"added_by"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifySearchResponse holds the sections of GET /search requested with type=track.
type SpotifySearchResponse struct {
	Tracks *SpotifyPaging[SpotifyTrack] `json:"tracks"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName *string        `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifySnapshot is returned by playlist item mutations.
type SpotifySnapshot struct {
	SnapshotID string `json:"snapshot_id"`
}
