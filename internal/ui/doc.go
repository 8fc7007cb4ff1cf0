// Package ui implements the live now-playing view using bubbletea's Elm architecture.
//
// The [Model] polls the player on a fixed interval and renders the current track, a progress bar, the device and
// the shuffle and repeat modes. Between polls the position is estimated from the time since the last poll.
//
// Player controls run as commands and trigger an immediate refresh when they succeed:
//   - space : play or pause
//   - n / p : next and previous track
//   - s : toggle shuffle
//   - r : cycle repeat (off, context, track)
//   - u : refresh now
//   - q : quit
//
// An authentication error stops the view and is returned by [Run]. Other errors are shown and polling continues.
package ui
