package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#1DB954", "#FFA500", "#FF4F4F", "#626262")

// struct Palette is the watch view stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	track  lipgloss.Style
	accent lipgloss.Style
	paused lipgloss.Style
	err    lipgloss.Style
	muted  lipgloss.Style
	bar    lipgloss.Style
}

// NewPalette builds a [Palette] from an accent, warning, error and muted foreground.
func NewPalette(accent, warn, e, muted string) *Palette {
	return &Palette{
		title:  NewBold(accent).MarginBottom(1),
		track:  lipgloss.NewStyle().Bold(true),
		accent: NewStyle(accent),
		paused: NewStyle(warn),
		err:    NewBold(e),
		muted:  NewEm(muted),
		bar:    NewStyle(accent),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
