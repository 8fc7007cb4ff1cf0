// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/nowplaying/internal/ui"
	"github.com/urfave/cli/v3"
)

func deviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "Target device ID (default: the active device)",
	}
}

func limitFlag(value int) cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of items to return",
		Value:   value,
	}
}

func offsetFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "offset",
		Usage: "Index of the first item to return",
	}
}

// setupCommand handles first-run setup of the config file and credential database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create config.toml, the credential database and its sealing key",
				Action: r.SetupInit,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Spotify sign-in and the local session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Spotify in the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show whether a valid token is stored and when it expires",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored token",
				Action: r.AuthLogout,
			},
			{
				Name:  "history",
				Usage: "Show recent sign-in, renewal and sign-out events",
				Flags: []cli.Flag{
					limitFlag(20),
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Delete the recorded history",
					},
				},
				Action: r.AuthHistory,
			},
		},
	}
}

// nowCommand shows the current playback.
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "now",
		Aliases: []string{"status"},
		Usage:   "Show what is playing",
		Action:  r.PlayerNow,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Resume playback, or play tracks or a context",
		ArgsUsage: "[track-uri...]",
		Flags: []cli.Flag{
			deviceFlag(),
			&cli.StringFlag{
				Name:  "context",
				Usage: "Album, artist or playlist URI to play",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Position within the context or track list to start at",
				Value: -1,
			},
		},
		Action: r.PlayerPlay,
	}
}

func pauseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "pause",
		Usage:  "Pause playback",
		Flags:  []cli.Flag{deviceFlag()},
		Action: r.PlayerPause,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "next",
		Aliases: []string{"skip"},
		Usage:   "Skip to the next track",
		Flags:   []cli.Flag{deviceFlag()},
		Action:  r.PlayerNext,
	}
}

func prevCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "prev",
		Aliases: []string{"previous"},
		Usage:   "Go back to the previous track",
		Flags:   []cli.Flag{deviceFlag()},
		Action:  r.PlayerPrevious,
	}
}

func seekCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "seek",
		Usage:     "Seek within the current track",
		ArgsUsage: "<position: 90, 1:30 or 1m30s>",
		Flags:     []cli.Flag{deviceFlag()},
		Action:    r.PlayerSeek,
	}
}

func shuffleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "shuffle",
		Usage:     "Turn shuffle on or off, or toggle it",
		ArgsUsage: "[on|off]",
		Flags:     []cli.Flag{deviceFlag()},
		Action:    r.PlayerShuffle,
	}
}

func repeatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "repeat",
		Usage:     "Set the repeat mode, or cycle it",
		ArgsUsage: "[off|context|track]",
		Flags:     []cli.Flag{deviceFlag()},
		Action:    r.PlayerRepeat,
	}
}

func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List available Spotify Connect devices",
		Action: r.PlayerDevices,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Live now-playing view with player controls",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Polling interval",
				Value:   ui.DefaultInterval,
			},
		},
		Before: r.quietBootstrap,
		Action: r.PlayerWatch,
	}
}

func recentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recent",
		Aliases: []string{"history"},
		Usage:   "Show recently played tracks",
		Flags:   []cli.Flag{limitFlag(20)},
		Action:  r.LibraryRecent,
	}
}

func topCommand(r *Runner) *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "range",
				Aliases: []string{"r"},
				Usage:   "Time range: short_term, medium_term or long_term",
				Value:   "medium_term",
			},
			limitFlag(20),
			offsetFlag(),
		}
	}

	return &cli.Command{
		Name:  "top",
		Usage: "Show your top artists and tracks",
		Commands: []*cli.Command{
			{
				Name:   "artists",
				Usage:  "Top artists",
				Flags:  flags(),
				Action: r.LibraryTopArtists,
			},
			{
				Name:   "tracks",
				Usage:  "Top tracks",
				Flags:  flags(),
				Action: r.LibraryTopTracks,
			},
		},
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show the signed-in account",
		Action: r.LibraryMe,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search for tracks",
		ArgsUsage: "<query>",
		Flags:     []cli.Flag{limitFlag(10), offsetFlag()},
		Action:    r.LibrarySearch,
	}
}

// playlistCommand handles playlist reads, edits, builds and exports.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl", "playlists"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List your playlists",
				Flags: []cli.Flag{
					limitFlag(20),
					offsetFlag(),
				},
				Action: r.PlaylistList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its tracks",
				ArgsUsage: "<playlist-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Fetch every track instead of the first page",
					},
					limitFlag(100),
					offsetFlag(),
				},
				Action: r.PlaylistShow,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the playlist public",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:      "edit",
				Usage:     "Change a playlist's name, description or visibility",
				ArgsUsage: "<playlist-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "description", Usage: "New description"},
					&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
					&cli.BoolFlag{Name: "private", Usage: "Make the playlist private"},
				},
				Action: r.PlaylistEdit,
			},
			{
				Name:      "add",
				Usage:     "Append tracks to a playlist",
				ArgsUsage: "<playlist-id> <track-uri...>",
				Action:    r.PlaylistAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove every occurrence of tracks from a playlist",
				ArgsUsage: "<playlist-id> <track-uri...>",
				Action:    r.PlaylistRemove,
			},
			{
				Name:      "delete",
				Usage:     "Delete (unfollow) a playlist",
				ArgsUsage: "<playlist-id>",
				Action:    r.PlaylistDelete,
			},
			{
				Name:      "build",
				Usage:     "Create a playlist from a list of \"title - artist\" lines",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "File with one query per line (default: stdin)",
					},
					&cli.StringFlag{Name: "description", Usage: "Playlist description"},
					&cli.BoolFlag{Name: "public", Usage: "Make the playlist public"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Search only, create nothing"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent searches (max 10)", Value: 4},
				},
				Action: r.PlaylistBuild,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files",
				ArgsUsage: "<playlist-id...>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown or txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: spotify_export_<epoch>)",
					},
					&cli.BoolFlag{
						Name:  "covers",
						Usage: "Download cover images for Markdown exports",
					},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent file writers (max 10)", Value: 4},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}
