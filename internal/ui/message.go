package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/models"
)

var (
	_ tea.Msg = playbackMsg{}
	_ tea.Msg = tickMsg{}
	_ tea.Msg = actionMsg{}
)

// playbackMsg carries the result of one player poll.
type playbackMsg struct {
	playback *models.CurrentPlayback
	err      error
	at       time.Time
}

// tickMsg schedules the next poll.
type tickMsg time.Time

// actionMsg reports a finished player control.
type actionMsg struct {
	action string
	err    error
}
