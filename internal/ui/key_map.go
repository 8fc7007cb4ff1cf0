package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the watch view.
type keyMap struct {
	toggle  key.Binding
	next    key.Binding
	prev    key.Binding
	shuffle key.Binding
	repeat  key.Binding
	refresh key.Binding
	help    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:    key.NewBinding(key.WithKeys("n", "right", "l"), key.WithHelp("n/→", "next")),
		prev:    key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("p/←", "previous")),
		shuffle: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		repeat:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		refresh: key.NewBinding(key.WithKeys("ctrl+r", "u"), key.WithHelp("u", "refresh")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.prev, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.prev},
		{k.shuffle, k.repeat, k.refresh},
		{k.help, k.quit},
	}
}
