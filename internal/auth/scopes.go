package auth

// Scopes is the fixed set requested on every authorization.
var Scopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-library-read",
	"user-library-modify",
	"user-follow-read",
	"user-follow-modify",
	"user-top-read",
	"user-read-recently-played",
	"streaming",
}
