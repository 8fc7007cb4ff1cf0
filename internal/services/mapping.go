package services

import (
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// PlayedAtLayout is the timestamp format of play history and playlist items.
const PlayedAtLayout = time.RFC3339Nano

// MapImage converts an image. Null dimensions become zero.
func MapImage(dto SpotifyImage) models.Image {
	img := models.Image{URL: dto.URL}
	if dto.Width != nil {
		img.Width = *dto.Width
	}
	if dto.Height != nil {
		img.Height = *dto.Height
	}
	return img
}

// MapImages converts a list of images, keeping nil for an empty list.
func MapImages(dtos []SpotifyImage) []models.Image {
	if len(dtos) == 0 {
		return nil
	}
	out := make([]models.Image, len(dtos))
	for i, d := range dtos {
		out[i] = MapImage(d)
	}
	return out
}

// MapArtist converts a simplified or full artist.
func MapArtist(dto SpotifyArtist) models.Artist {
	a := models.Artist{
		ID:         dto.ID,
		Name:       dto.Name,
		URI:        dto.URI,
		Genres:     dto.Genres,
		Images:     MapImages(dto.Images),
		Popularity: dto.Popularity,
	}
	if dto.Followers != nil {
		a.Followers = dto.Followers.Total
	}
	return a
}

func mapArtists(dtos []SpotifyArtist) []models.Artist {
	out := make([]models.Artist, len(dtos))
	for i, d := range dtos {
		out[i] = MapArtist(d)
	}
	return out
}

// MapAlbum converts an album and parses its release date at the stated precision.
func MapAlbum(dto SpotifyAlbum) models.Album {
	date, precision := ParseReleaseDate(dto.ReleaseDate, dto.ReleaseDatePrecision)
	return models.Album{
		ID:               dto.ID,
		Name:             dto.Name,
		URI:              dto.URI,
		AlbumType:        dto.AlbumType,
		Artists:          mapArtists(dto.Artists),
		Images:           MapImages(dto.Images),
		ReleaseDate:      date,
		ReleasePrecision: precision,
		TotalTracks:      dto.TotalTracks,
	}
}

// ParseReleaseDate parses "2006", "2006-01" or "2006-01-02".
//
// An empty precision is inferred from the value's length. Unparsable dates yield the zero time and an empty
// precision.
func ParseReleaseDate(value, precision string) (time.Time, models.ReleasePrecision) {
	p := models.ReleasePrecision(precision)
	if p == "" {
		switch len(value) {
		case 4:
			p = models.PrecisionYear
		case 7:
			p = models.PrecisionMonth
		default:
			p = models.PrecisionDay
		}
	}

	var layout string
	switch p {
	case models.PrecisionYear:
		layout = "2006"
	case models.PrecisionMonth:
		layout = "2006-01"
	case models.PrecisionDay:
		layout = "2006-01-02"
	default:
		return time.Time{}, ""
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, ""
	}
	return t, p
}

// MapTrack converts a track.
func MapTrack(dto SpotifyTrack) models.Track {
	return models.Track{
		ID:          dto.ID,
		Name:        dto.Name,
		URI:         dto.URI,
		Artists:     mapArtists(dto.Artists),
		Album:       MapAlbum(dto.Album),
		Duration:    time.Duration(dto.DurationMS) * time.Millisecond,
		Explicit:    dto.Explicit,
		Popularity:  dto.Popularity,
		TrackNumber: dto.TrackNumber,
		ISRC:        dto.ExternalIDs.ISRC,
		IsLocal:     dto.IsLocal,
	}
}

// MapDevice converts a device. A restricted device may have a null id and volume.
func MapDevice(dto SpotifyDevice) models.Device {
	d := models.Device{
		Name:         dto.Name,
		Type:         dto.Type,
		IsActive:     dto.IsActive,
		IsRestricted: dto.IsRestricted,
		IsPrivate:    dto.IsPrivateSession,
	}
	if dto.ID != nil {
		d.ID = *dto.ID
	}
	if dto.VolumePercent != nil {
		d.VolumePercent = *dto.VolumePercent
		d.HasVolume = true
	}
	return d
}

// MapPlaybackContext converts a context; nil stays nil.
func MapPlaybackContext(dto *SpotifyContext) *models.PlaybackContext {
	if dto == nil {
		return nil
	}
	return &models.PlaybackContext{Type: dto.Type, URI: dto.URI, Href: dto.Href}
}

// MapCurrentPlayback converts a player snapshot.
//
// Missing shuffle is off; missing or unknown repeat is [models.RepeatOff]. Non-track items are dropped.
func MapCurrentPlayback(dto SpotifyPlaybackState) models.CurrentPlayback {
	pb := models.CurrentPlayback{
		Device:               MapDevice(dto.Device),
		Context:              MapPlaybackContext(dto.Context),
		IsPlaying:            dto.IsPlaying,
		RepeatState:          models.RepeatOff,
		CurrentlyPlayingType: dto.CurrentlyPlayingType,
	}

	if dto.ShuffleState != nil {
		pb.ShuffleState = *dto.ShuffleState
	}
	if dto.RepeatState != nil {
		pb.RepeatState = models.ParseRepeatState(*dto.RepeatState)
	}
	if dto.ProgressMS != nil {
		pb.Progress = time.Duration(*dto.ProgressMS) * time.Millisecond
	}
	if dto.Timestamp > 0 {
		pb.Timestamp = time.UnixMilli(dto.Timestamp)
	}
	if dto.Item != nil && (dto.Item.Type == "" || dto.Item.Type == "track") {
		track := MapTrack(*dto.Item)
		pb.Item = &track
	}

	return pb
}

// MapRecentTrack converts one history item. It reports false when played_at does not parse.
func MapRecentTrack(dto SpotifyPlayHistory) (models.RecentTrack, bool) {
	playedAt, err := time.Parse(PlayedAtLayout, dto.PlayedAt)
	if err != nil {
		return models.RecentTrack{}, false
	}
	return models.RecentTrack{
		Track:    MapTrack(dto.Track),
		PlayedAt: playedAt,
		Context:  MapPlaybackContext(dto.Context),
	}, true
}

// MapRecentlyPlayed converts a history page, dropping items whose played_at does not parse.
func MapRecentlyPlayed(dto SpotifyRecentlyPlayed) models.RecentlyPlayed {
	rp := models.RecentlyPlayed{
		Items:   make([]models.RecentTrack, 0, len(dto.Items)),
		Limit:   dto.Limit,
		HasNext: dto.Next != nil,
	}

	for _, item := range dto.Items {
		if rt, ok := MapRecentTrack(item); ok {
			rp.Items = append(rp.Items, rt)
		}
	}

	if dto.Cursors != nil {
		if dto.Cursors.Before != nil {
			rp.Before = *dto.Cursors.Before
		}
		if dto.Cursors.After != nil {
			rp.After = *dto.Cursors.After
		}
	}

	return rp
}

// MapOwner converts a playlist owner. A missing display name falls back to the id.
func MapOwner(dto SpotifyOwner) models.Owner {
	o := models.Owner{ID: dto.ID, DisplayName: dto.ID}
	if dto.DisplayName != nil && *dto.DisplayName != "" {
		o.DisplayName = *dto.DisplayName
	}
	return o
}

// MapPlaylist converts playlist metadata. Missing public is false.
func MapPlaylist(dto SpotifyPlaylist) models.Playlist {
	p := models.Playlist{
		ID:            dto.ID,
		Name:          dto.Name,
		URI:           dto.URI,
		Owner:         MapOwner(dto.Owner),
		Collaborative: dto.Collaborative,
		TrackCount:    dto.Tracks.Total,
		Images:        MapImages(dto.Images),
		SnapshotID:    dto.SnapshotID,
	}
	if dto.Description != nil {
		p.Description = *dto.Description
	}
	if dto.Public != nil {
		p.Public = *dto.Public
	}
	return p
}

// MapPlaylistTrack converts a playlist item. It reports false for null and local items.
//
// An unparsable added_at leaves a zero time.
func MapPlaylistTrack(dto SpotifyPlaylistTrack) (models.PlaylistTrack, bool) {
	if dto.Track == nil || dto.IsLocal || dto.Track.IsLocal {
		return models.PlaylistTrack{}, false
	}

	pt := models.PlaylistTrack{Track: MapTrack(*dto.Track)}
	if dto.AddedAt != nil {
		if t, err := time.Parse(PlayedAtLayout, *dto.AddedAt); err == nil {
			pt.AddedAt = t
		}
	}
	if dto.AddedBy != nil {
		pt.AddedBy = dto.AddedBy.ID
	}
	return pt, true
}

// MapPage converts an offset page with f, skipping items f rejects.
//
// Total, Limit and Offset are copied as is; HasNext and HasPrevious follow the presence of next and previous.
func MapPage[S, T any](dto SpotifyPaging[S], f func(S) (T, bool)) models.Page[T] {
	page := models.Page[T]{
		Items:       make([]T, 0, len(dto.Items)),
		Total:       dto.Total,
		Limit:       dto.Limit,
		Offset:      dto.Offset,
		HasNext:     dto.Next != nil,
		HasPrevious: dto.Previous != nil,
	}

	for _, item := range dto.Items {
		if v, ok := f(item); ok {
			page.Items = append(page.Items, v)
		}
	}

	return page
}

// All lifts a total mapper into the shape [MapPage] expects.
func All[S, T any](f func(S) T) func(S) (T, bool) {
	return func(s S) (T, bool) { return f(s), true }
}

// MapSearchTrackResult converts the track section of a search. A missing section is an empty page.
func MapSearchTrackResult(query string, dto SpotifySearchResponse) models.SearchTrackResult {
	result := models.SearchTrackResult{Query: query, Tracks: models.Page[models.Track]{Items: []models.Track{}}}
	if dto.Tracks != nil {
		result.Tracks = MapPage(*dto.Tracks, All(MapTrack))
	}
	return result
}

// MapUser converts a user profile. A missing display name falls back to the id.
func MapUser(dto SpotifyUser) models.User {
	u := models.User{
		ID:          dto.ID,
		DisplayName: dto.ID,
		Email:       dto.Email,
		Country:     dto.Country,
		Product:     dto.Product,
		Followers:   dto.Followers.Total,
		Images:      MapImages(dto.Images),
	}
	if dto.DisplayName != nil && *dto.DisplayName != "" {
		u.DisplayName = *dto.DisplayName
	}
	return u
}
