package models

import (
	"strings"
	"time"
)

// Image is an artwork rendition. Width and Height are zero when Spotify omits them.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Artist is a performer, either simplified (ID/Name/URI) or full (with genres, popularity and followers).
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	Genres     []string `json:"genres,omitempty"`
	Images     []Image  `json:"images,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
	Followers  int      `json:"followers,omitempty"`
}

// ReleasePrecision is the granularity of an album release date.
type ReleasePrecision string

const (
	PrecisionYear  ReleasePrecision = "year"
	PrecisionMonth ReleasePrecision = "month"
	PrecisionDay   ReleasePrecision = "day"
)

// Album is a release a track belongs to. ReleaseDate is zero when it could not be parsed.
type Album struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	URI              string           `json:"uri"`
	AlbumType        string           `json:"album_type,omitempty"`
	Artists          []Artist         `json:"artists,omitempty"`
	Images           []Image          `json:"images,omitempty"`
	ReleaseDate      time.Time        `json:"release_date"`
	ReleasePrecision ReleasePrecision `json:"release_precision,omitempty"`
	TotalTracks      int              `json:"total_tracks,omitempty"`
}

// Year returns the release year, or 0 when unknown.
func (a Album) Year() int {
	if a.ReleaseDate.IsZero() {
		return 0
	}
	return a.ReleaseDate.Year()
}

// Track is a playable recording.
type Track struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	URI         string        `json:"uri"`
	Artists     []Artist      `json:"artists"`
	Album       Album         `json:"album"`
	Duration    time.Duration `json:"duration"`
	Explicit    bool          `json:"explicit"`
	Popularity  int           `json:"popularity,omitempty"`
	TrackNumber int           `json:"track_number,omitempty"`
	ISRC        string        `json:"isrc,omitempty"`
	IsLocal     bool          `json:"is_local,omitempty"`
}

// ArtistNames joins the track's artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Device is a Spotify Connect target.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	IsPrivate     bool   `json:"is_private"`
	VolumePercent int    `json:"volume_percent"`
	HasVolume     bool   `json:"has_volume"`
}

// PlaybackContext is what playback was started from (album, playlist, artist, show).
type PlaybackContext struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
	Href string `json:"href,omitempty"`
}

// RepeatState is the player repeat mode.
type RepeatState string

const (
	RepeatOff     RepeatState = "off"
	RepeatTrack   RepeatState = "track"
	RepeatContext RepeatState = "context"
)

// ParseRepeatState maps an upstream value to a [RepeatState]. Unknown or empty values are [RepeatOff].
func ParseRepeatState(s string) RepeatState {
	switch RepeatState(strings.ToLower(s)) {
	case RepeatTrack:
		return RepeatTrack
	case RepeatContext:
		return RepeatContext
	default:
		return RepeatOff
	}
}

// CurrentPlayback is a snapshot of the player.
//
// Item is nil when nothing is playing or the item is not a track (episodes, ads). Context is nil when playback
// was not started from a context.
type CurrentPlayback struct {
	Device               Device           `json:"device"`
	Context              *PlaybackContext `json:"context,omitempty"`
	Item                 *Track           `json:"item,omitempty"`
	Progress             time.Duration    `json:"progress"`
	IsPlaying            bool             `json:"is_playing"`
	ShuffleState         bool             `json:"shuffle_state"`
	RepeatState          RepeatState      `json:"repeat_state"`
	CurrentlyPlayingType string           `json:"currently_playing_type"`
	Timestamp            time.Time        `json:"timestamp"`
}

// RecentTrack is one entry of the listening history.
type RecentTrack struct {
	Track    Track            `json:"track"`
	PlayedAt time.Time        `json:"played_at"`
	Context  *PlaybackContext `json:"context,omitempty"`
}

// RecentlyPlayed is a cursor page of listening history.
//
// Before and After are the millisecond cursors for the adjacent pages; they are empty when absent.
type RecentlyPlayed struct {
	Items   []RecentTrack `json:"items"`
	Limit   int           `json:"limit"`
	Before  string        `json:"before,omitempty"`
	After   string        `json:"after,omitempty"`
	HasNext bool          `json:"has_next"`
}

// Owner identifies who owns a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist is playlist metadata. Tracks are fetched separately as [PlaylistTrack] pages.
type Playlist struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	URI           string  `json:"uri"`
	Owner         Owner   `json:"owner"`
	Public        bool    `json:"public"`
	Collaborative bool    `json:"collaborative"`
	TrackCount    int     `json:"track_count"`
	Images        []Image `json:"images,omitempty"`
	SnapshotID    string  `json:"snapshot_id,omitempty"`
}

// PlaylistTrack is a track as it appears in a playlist.
type PlaylistTrack struct {
	Track   Track     `json:"track"`
	AddedAt time.Time `json:"added_at"`
	AddedBy string    `json:"added_by,omitempty"`
}

// PlaylistExport is a playlist with every one of its tracks, as written by the exporters.
type PlaylistExport struct {
	Playlist Playlist        `json:"playlist"`
	Tracks   []PlaylistTrack `json:"tracks"`
}

// Page is an offset-paginated list.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Total       int  `json:"total"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// SearchTrackResult is the track section of a search response.
type SearchTrackResult struct {
	Query  string      `json:"query"`
	Tracks Page[Track] `json:"tracks"`
}

// User is the signed-in Spotify account.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
	Country     string  `json:"country,omitempty"`
	Product     string  `json:"product,omitempty"`
	Followers   int     `json:"followers"`
	Images      []Image `json:"images,omitempty"`
}

// TimeRange is the window for top artists and tracks.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// Valid reports whether r is one of the three ranges Spotify accepts.
func (r TimeRange) Valid() bool {
	switch r {
	case ShortTerm, MediumTerm, LongTerm:
		return true
	}
	return false
}

// AuthEvent records one session state transition. It never carries token material.
type AuthEvent struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"sequence"`
	SessionID string    `json:"session_id,omitempty"`
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
