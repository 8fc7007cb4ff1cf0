package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

func ptr[T any](v T) *T { return &v }

func decodeDTO[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return v
}

const trackJSON = `{
	"id": "t1",
	"name": "Blue in Green",
	"uri": "spotify:track:t1",
	"duration_ms": 337000,
	"explicit": false,
	"popularity": 61,
	"track_number": 3,
	"external_ids": {"isrc": "USSM15900113"},
	"artists": [{"id": "a1", "name": "Miles Davis", "uri": "spotify:artist:a1"}],
	"album": {
		"id": "al1",
		"name": "Kind of Blue",
		"album_type": "album",
		"release_date": "1959-08-17",
		"release_date_precision": "day",
		"images": [{"url": "https://i.scdn.co/image/1", "width": 640, "height": 640}]
	}
}`

func TestMapTrack(t *testing.T) {
	track := MapTrack(decodeDTO[SpotifyTrack](t, trackJSON))

	if track.ID != "t1" || track.Name != "Blue in Green" || track.URI != "spotify:track:t1" {
		t.Errorf("unexpected identity %+v", track)
	}
	if track.Duration != 337*time.Second {
		t.Errorf("expected 5m37s, got %v", track.Duration)
	}
	if track.ISRC != "USSM15900113" {
		t.Errorf("expected ISRC, got %q", track.ISRC)
	}
	if track.ArtistNames() != "Miles Davis" {
		t.Errorf("unexpected artists %q", track.ArtistNames())
	}
	if track.Album.Year() != 1959 || track.Album.ReleasePrecision != models.PrecisionDay {
		t.Errorf("unexpected album release %v %q", track.Album.ReleaseDate, track.Album.ReleasePrecision)
	}
	if len(track.Album.Images) != 1 || track.Album.Images[0].Width != 640 {
		t.Errorf("unexpected images %+v", track.Album.Images)
	}
}

func TestParseReleaseDate(t *testing.T) {
	tc := []struct {
		name      string
		value     string
		precision string
		want      time.Time
		wantPrec  models.ReleasePrecision
	}{
		{name: "year", value: "1959", precision: "year", want: time.Date(1959, 1, 1, 0, 0, 0, 0, time.UTC), wantPrec: models.PrecisionYear},
		{name: "month", value: "1959-08", precision: "month", want: time.Date(1959, 8, 1, 0, 0, 0, 0, time.UTC), wantPrec: models.PrecisionMonth},
		{name: "day", value: "1959-08-17", precision: "day", want: time.Date(1959, 8, 17, 0, 0, 0, 0, time.UTC), wantPrec: models.PrecisionDay},
		{name: "inferred year", value: "2001", want: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), wantPrec: models.PrecisionYear},
		{name: "precision mismatch", value: "1959", precision: "day"},
		{name: "unknown precision", value: "1959", precision: "decade"},
		{name: "empty", value: "", precision: "day"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, prec := ParseReleaseDate(tt.value, tt.precision)
			if !got.Equal(tt.want) || prec != tt.wantPrec {
				t.Errorf("ParseReleaseDate(%q, %q) = %v, %q; want %v, %q", tt.value, tt.precision, got, prec, tt.want, tt.wantPrec)
			}
		})
	}
}

func TestMapCurrentPlayback(t *testing.T) {
	t.Run("Full Snapshot", func(t *testing.T) {
		dto := decodeDTO[SpotifyPlaybackState](t, `{
			"device": {"id": "d1", "name": "Desk", "type": "Computer", "is_active": true, "volume_percent": 40},
			"repeat_state": "context",
			"shuffle_state": true,
			"context": {"type": "playlist", "uri": "spotify:playlist:p1", "href": "https://api.spotify.com/v1/playlists/p1"},
			"timestamp": 1700000000000,
			"progress_ms": 61000,
			"is_playing": true,
			"currently_playing_type": "track",
			"item": `+trackJSON+`
		}`)

		pb := MapCurrentPlayback(dto)

		if !pb.IsPlaying || !pb.ShuffleState || pb.RepeatState != models.RepeatContext {
			t.Errorf("unexpected player flags %+v", pb)
		}
		if pb.Progress != 61*time.Second {
			t.Errorf("expected 61s progress, got %v", pb.Progress)
		}
		if pb.Item == nil || pb.Item.ID != "t1" {
			t.Fatalf("expected track item, got %+v", pb.Item)
		}
		if pb.Context == nil || pb.Context.Type != "playlist" {
			t.Errorf("expected playlist context, got %+v", pb.Context)
		}
		if !pb.Device.HasVolume || pb.Device.VolumePercent != 40 || pb.Device.ID != "d1" {
			t.Errorf("unexpected device %+v", pb.Device)
		}
		if !pb.Timestamp.Equal(time.UnixMilli(1700000000000)) {
			t.Errorf("unexpected timestamp %v", pb.Timestamp)
		}
	})

	t.Run("Missing Optional Fields", func(t *testing.T) {
		dto := decodeDTO[SpotifyPlaybackState](t, `{
			"device": {"id": null, "name": "Speaker", "type": "Speaker", "volume_percent": null},
			"is_playing": false,
			"currently_playing_type": "ad",
			"item": null
		}`)

		pb := MapCurrentPlayback(dto)

		if pb.ShuffleState {
			t.Error("expected missing shuffle to be off")
		}
		if pb.RepeatState != models.RepeatOff {
			t.Errorf("expected repeat off, got %q", pb.RepeatState)
		}
		if pb.Item != nil || pb.Context != nil {
			t.Error("expected no item and no context")
		}
		if pb.Device.HasVolume || pb.Device.ID != "" {
			t.Errorf("unexpected device %+v", pb.Device)
		}
	})

	t.Run("Unknown Repeat", func(t *testing.T) {
		pb := MapCurrentPlayback(SpotifyPlaybackState{RepeatState: ptr("sideways")})
		if pb.RepeatState != models.RepeatOff {
			t.Errorf("expected repeat off, got %q", pb.RepeatState)
		}
	})

	t.Run("Episode Item Dropped", func(t *testing.T) {
		pb := MapCurrentPlayback(SpotifyPlaybackState{
			CurrentlyPlayingType: "episode",
			Item:                 &SpotifyTrack{ID: "e1", Type: "episode"},
		})
		if pb.Item != nil {
			t.Errorf("expected episode to be dropped, got %+v", pb.Item)
		}
	})
}

func TestMapRecentlyPlayed(t *testing.T) {
	t.Run("Drops Items With Bad Timestamps", func(t *testing.T) {
		dto := decodeDTO[SpotifyRecentlyPlayed](t, `{
			"limit": 3,
			"next": "https://api.spotify.com/v1/me/player/recently-played?before=1700000000000",
			"cursors": {"after": "1700000300000", "before": "1700000000000"},
			"items": [
				{"track": {"id": "t1", "name": "One"}, "played_at": "2026-01-01T10:00:00.123Z"},
				{"track": {"id": "t2", "name": "Two"}, "played_at": "yesterday"},
				{"track": {"id": "t3", "name": "Three"}, "played_at": "2026-01-01T09:00:00Z", "context": {"type": "album", "uri": "spotify:album:x"}}
			]
		}`)

		rp := MapRecentlyPlayed(dto)

		if len(rp.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(rp.Items))
		}
		if rp.Items[0].Track.ID != "t1" || rp.Items[1].Track.ID != "t3" {
			t.Errorf("expected order t1, t3; got %s, %s", rp.Items[0].Track.ID, rp.Items[1].Track.ID)
		}
		if want := time.Date(2026, 1, 1, 10, 0, 0, 123_000_000, time.UTC); !rp.Items[0].PlayedAt.Equal(want) {
			t.Errorf("expected %v, got %v", want, rp.Items[0].PlayedAt)
		}
		if rp.Items[1].Context == nil || rp.Items[1].Context.Type != "album" {
			t.Errorf("expected album context, got %+v", rp.Items[1].Context)
		}
		if !rp.HasNext || rp.Before != "1700000000000" || rp.After != "1700000300000" {
			t.Errorf("unexpected cursors %+v", rp)
		}
	})

	t.Run("Last Page", func(t *testing.T) {
		rp := MapRecentlyPlayed(SpotifyRecentlyPlayed{Limit: 20})
		if rp.HasNext || rp.Items == nil || len(rp.Items) != 0 {
			t.Errorf("expected empty last page, got %+v", rp)
		}
	})
}

func TestMapPlaylist(t *testing.T) {
	t.Run("Missing Public And Display Name", func(t *testing.T) {
		dto := decodeDTO[SpotifyPlaylist](t, `{
			"id": "p1",
			"name": "Mix",
			"description": null,
			"public": null,
			"owner": {"id": "owner-1", "display_name": null},
			"tracks": {"total": 12}
		}`)

		p := MapPlaylist(dto)

		if p.Public {
			t.Error("expected missing public to be false")
		}
		if p.Owner.DisplayName != "owner-1" {
			t.Errorf("expected owner id fallback, got %q", p.Owner.DisplayName)
		}
		if p.TrackCount != 12 || p.Description != "" {
			t.Errorf("unexpected playlist %+v", p)
		}
	})

	t.Run("Present Fields", func(t *testing.T) {
		p := MapPlaylist(SpotifyPlaylist{
			ID:          "p2",
			Public:      ptr(true),
			Description: ptr("late night"),
			Owner:       SpotifyOwner{ID: "o", DisplayName: ptr("Olive")},
		})
		if !p.Public || p.Description != "late night" || p.Owner.DisplayName != "Olive" {
			t.Errorf("unexpected playlist %+v", p)
		}
	})
}

func TestMapPlaylistTrack(t *testing.T) {
	tc := []struct {
		name string
		dto  SpotifyPlaylistTrack
		keep bool
	}{
		{name: "regular", dto: SpotifyPlaylistTrack{AddedAt: ptr("2026-02-03T04:05:06Z"), Track: &SpotifyTrack{ID: "t"}}, keep: true},
		{name: "null track", dto: SpotifyPlaylistTrack{AddedAt: ptr("2026-02-03T04:05:06Z")}, keep: false},
		{name: "local item", dto: SpotifyPlaylistTrack{IsLocal: true, Track: &SpotifyTrack{ID: "t"}}, keep: false},
		{name: "bad added_at", dto: SpotifyPlaylistTrack{AddedAt: ptr("whenever"), Track: &SpotifyTrack{ID: "t"}}, keep: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapPlaylistTrack(tt.dto)
			if ok != tt.keep {
				t.Fatalf("expected keep=%v, got %v", tt.keep, ok)
			}
			if tt.name == "bad added_at" && !got.AddedAt.IsZero() {
				t.Errorf("expected zero added_at, got %v", got.AddedAt)
			}
			if tt.name == "regular" && got.AddedAt.IsZero() {
				t.Error("expected parsed added_at")
			}
		})
	}
}

func TestMapPage(t *testing.T) {
	t.Run("Has Next And Previous", func(t *testing.T) {
		dto := SpotifyPaging[SpotifyArtist]{
			Items:    []SpotifyArtist{{ID: "a1"}, {ID: "a2"}},
			Total:    10,
			Limit:    2,
			Offset:   2,
			Next:     ptr("https://api.spotify.com/v1/me/top/artists?offset=4"),
			Previous: ptr("https://api.spotify.com/v1/me/top/artists?offset=0"),
		}

		page := MapPage(dto, All(MapArtist))

		if len(page.Items) != 2 || page.Total != 10 || page.Limit != 2 || page.Offset != 2 {
			t.Errorf("unexpected page %+v", page)
		}
		if !page.HasNext || !page.HasPrevious {
			t.Error("expected next and previous")
		}
	})

	t.Run("First Page Without Next", func(t *testing.T) {
		page := MapPage(SpotifyPaging[SpotifyArtist]{Items: []SpotifyArtist{{ID: "a1"}}, Total: 1}, All(MapArtist))
		if page.HasNext || page.HasPrevious {
			t.Errorf("expected no neighbours, got %+v", page)
		}
	})

	t.Run("Filters Rejected Items", func(t *testing.T) {
		dto := SpotifyPaging[SpotifyPlaylistTrack]{
			Items: []SpotifyPlaylistTrack{{Track: &SpotifyTrack{ID: "t1"}}, {}, {Track: &SpotifyTrack{ID: "t2"}}},
			Total: 3,
		}

		page := MapPage(dto, MapPlaylistTrack)
		if len(page.Items) != 2 || page.Total != 3 {
			t.Errorf("expected 2 kept items with total 3, got %d / %d", len(page.Items), page.Total)
		}
	})
}

func TestMapSearchTrackResult(t *testing.T) {
	empty := MapSearchTrackResult("nothing", SpotifySearchResponse{})
	if empty.Query != "nothing" || empty.Tracks.Items == nil || len(empty.Tracks.Items) != 0 {
		t.Errorf("expected empty result, got %+v", empty)
	}

	result := MapSearchTrackResult("blue", SpotifySearchResponse{Tracks: &SpotifyPaging[SpotifyTrack]{
		Items: []SpotifyTrack{{ID: "t1"}},
		Total: 1,
	}})
	if len(result.Tracks.Items) != 1 || result.Tracks.Items[0].ID != "t1" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestMapUser(t *testing.T) {
	u := MapUser(SpotifyUser{ID: "u1", Followers: followers{Total: 9}})
	if u.DisplayName != "u1" || u.Followers != 9 {
		t.Errorf("unexpected user %+v", u)
	}

	u = MapUser(SpotifyUser{ID: "u1", DisplayName: ptr("Uma")})
	if u.DisplayName != "Uma" {
		t.Errorf("expected display name, got %q", u.DisplayName)
	}
}

func TestMapImage(t *testing.T) {
	img := MapImage(SpotifyImage{URL: "x"})
	if img.Width != 0 || img.Height != 0 {
		t.Errorf("expected zero dimensions, got %+v", img)
	}
	if MapImages(nil) != nil {
		t.Error("expected nil for no images")
	}
}
