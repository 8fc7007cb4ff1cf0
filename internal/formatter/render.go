package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// Plain text renderers for command output. Tables are tab-aligned and carry no color so they stay readable
// when piped.

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

// Playback writes a short description of the player state.
func Playback(w io.Writer, pb *models.CurrentPlayback) error {
	if pb == nil {
		_, err := fmt.Fprintln(w, "Nothing is playing (no active device).")
		return err
	}

	status := "Paused"
	if pb.IsPlaying {
		status = "Playing"
	}

	var b strings.Builder
	if pb.Item == nil {
		fmt.Fprintf(&b, "%s: %s\n", status, nonEmpty(pb.CurrentlyPlayingType, "unknown item"))
	} else {
		fmt.Fprintf(&b, "%s: %s - %s\n", status, pb.Item.Name, pb.Item.ArtistNames())
		if pb.Item.Album.Name != "" {
			fmt.Fprintf(&b, "Album:   %s\n", pb.Item.Album.Name)
		}
		fmt.Fprintf(&b, "Time:    %s / %s %s\n",
			FormatDuration(pb.Progress), FormatDuration(pb.Item.Duration), ProgressBar(pb.Progress, pb.Item.Duration, 20))
	}

	fmt.Fprintf(&b, "Device:  %s (%s)", nonEmpty(pb.Device.Name, "unknown"), nonEmpty(pb.Device.Type, "?"))
	if pb.Device.HasVolume {
		fmt.Fprintf(&b, " vol %d%%", pb.Device.VolumePercent)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Shuffle: %s  Repeat: %s\n", onOff(pb.ShuffleState), pb.RepeatState)
	if pb.Context != nil {
		fmt.Fprintf(&b, "From:    %s %s\n", pb.Context.Type, pb.Context.URI)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ProgressBar draws a fixed-width bar for position within total.
func ProgressBar(position, total time.Duration, width int) string {
	if width <= 0 {
		return ""
	}

	filled := 0
	if total > 0 {
		filled = int(float64(width) * float64(min(max(position, 0), total)) / float64(total))
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// Tracks writes a numbered track table starting at offset+1.
func Tracks(w io.Writer, tracks []models.Track, offset int) error {
	tw := newTable(w, "#", "NAME", "ARTISTS", "ALBUM", "TIME", "URI")
	for i, t := range tracks {
		row(tw, strconv.Itoa(offset+i+1), t.Name, t.ArtistNames(), t.Album.Name, FormatDuration(t.Duration), t.URI)
	}
	return tw.Flush()
}

// PlaylistTracks writes playlist items with the date they were added.
func PlaylistTracks(w io.Writer, items []models.PlaylistTrack, offset int) error {
	tw := newTable(w, "#", "NAME", "ARTISTS", "TIME", "ADDED")
	for i, item := range items {
		added := ""
		if !item.AddedAt.IsZero() {
			added = item.AddedAt.Local().Format(time.DateOnly)
		}
		row(tw, strconv.Itoa(offset+i+1), item.Track.Name, item.Track.ArtistNames(), FormatDuration(item.Track.Duration), added)
	}
	return tw.Flush()
}

// Artists writes a numbered artist table.
func Artists(w io.Writer, artists []models.Artist, offset int) error {
	tw := newTable(w, "#", "NAME", "GENRES", "POPULARITY")
	for i, a := range artists {
		row(tw, strconv.Itoa(offset+i+1), a.Name, strings.Join(a.Genres, ", "), strconv.Itoa(a.Popularity))
	}
	return tw.Flush()
}

// Playlists writes a playlist table.
func Playlists(w io.Writer, playlists []models.Playlist, offset int) error {
	tw := newTable(w, "#", "NAME", "TRACKS", "OWNER", "VISIBILITY", "ID")
	for i, p := range playlists {
		row(tw, strconv.Itoa(offset+i+1), p.Name, strconv.Itoa(p.TrackCount), p.Owner.DisplayName, VisibilityString(p.Public), p.ID)
	}
	return tw.Flush()
}

// Devices writes the Connect device list. The active device is marked with "*".
func Devices(w io.Writer, devices []models.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices available. Open Spotify on a device first.")
		return err
	}

	tw := newTable(w, "", "NAME", "TYPE", "VOLUME", "ID")
	for _, d := range devices {
		active := ""
		if d.IsActive {
			active = "*"
		}
		volume := "-"
		if d.HasVolume {
			volume = strconv.Itoa(d.VolumePercent) + "%"
		}
		row(tw, active, d.Name, d.Type, volume, nonEmpty(d.ID, "-"))
	}
	return tw.Flush()
}

// RecentlyPlayed writes the listening history, newest first.
func RecentlyPlayed(w io.Writer, rp models.RecentlyPlayed) error {
	tw := newTable(w, "PLAYED", "NAME", "ARTISTS")
	for _, item := range rp.Items {
		row(tw, item.PlayedAt.Local().Format(time.DateTime), item.Track.Name, item.Track.ArtistNames())
	}
	return tw.Flush()
}

// AuthEvents writes the session history.
func AuthEvents(w io.Writer, events []*models.AuthEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No sign-in activity recorded.")
		return err
	}

	tw := newTable(w, "#", "WHEN", "STATE", "SESSION", "DETAIL")
	for _, e := range events {
		row(tw, strconv.Itoa(e.Sequence), e.CreatedAt.Local().Format(time.DateTime), e.State, shortID(e.SessionID), e.Detail)
	}
	return tw.Flush()
}

// User writes the profile summary.
func User(w io.Writer, u models.User) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", u.DisplayName, u.ID)
	if u.Email != "" {
		fmt.Fprintf(&b, "Email:     %s\n", u.Email)
	}
	if u.Product != "" {
		fmt.Fprintf(&b, "Plan:      %s\n", u.Product)
	}
	if u.Country != "" {
		fmt.Fprintf(&b, "Country:   %s\n", u.Country)
	}
	fmt.Fprintf(&b, "Followers: %d\n", u.Followers)

	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
