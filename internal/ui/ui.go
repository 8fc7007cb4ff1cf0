package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const (
	DefaultInterval = 2 * time.Second
	minInterval     = 500 * time.Millisecond
	defaultBarWidth = 30
)

// Model is the live now-playing view.
type Model struct {
	ctx      context.Context
	repo     services.Repository
	interval time.Duration
	now      func() time.Time

	playback  *models.CurrentPlayback
	fetchedAt time.Time
	loaded    bool
	status    string
	err       error
	fatal     error

	width   int
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a watch model that polls repo every interval.
func NewModel(ctx context.Context, repo services.Repository, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Model{
		ctx:      ctx,
		repo:     repo,
		interval: max(interval, minInterval),
		now:      time.Now,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.accent)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Err returns the error that stopped the view, if any.
func (m *Model) Err() error { return m.fatal }

// Init starts the spinner, the first poll and the poll loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case playbackMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			if isAuthError(msg.err) {
				m.fatal = msg.err
				return m, tea.Quit
			}
			return m, nil
		}
		m.err = nil
		m.playback = msg.playback
		m.fetchedAt = msg.at
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %s", msg.action, shared.UserMessage(msg.err))
			if isAuthError(msg.err) {
				m.fatal = msg.err
				return m, tea.Quit
			}
			return m, nil
		}
		m.status = msg.action
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		m.status = "Refreshing..."
		return m, m.fetch()
	}

	if m.playback == nil {
		if key.Matches(msg, m.keys.toggle, m.keys.next, m.keys.prev, m.keys.shuffle, m.keys.repeat) {
			m.status = "No active device"
		}
		return m, nil
	}

	pb := m.playback
	switch {
	case key.Matches(msg, m.keys.toggle):
		if pb.IsPlaying {
			return m, m.control("Paused", func(ctx context.Context) error { return m.repo.Pause(ctx, "") })
		}
		return m, m.control("Resumed", func(ctx context.Context) error { return m.repo.Play(ctx, services.PlayOptions{}) })

	case key.Matches(msg, m.keys.next):
		return m, m.control("Skipped to next", func(ctx context.Context) error { return m.repo.NextTrack(ctx, "") })

	case key.Matches(msg, m.keys.prev):
		return m, m.control("Back to previous", func(ctx context.Context) error { return m.repo.PreviousTrack(ctx, "") })

	case key.Matches(msg, m.keys.shuffle):
		state := !pb.ShuffleState
		label := fmt.Sprintf("Shuffle %s", onOff(state))
		return m, m.control(label, func(ctx context.Context) error { return m.repo.SetShuffle(ctx, state, "") })

	case key.Matches(msg, m.keys.repeat):
		state := NextRepeat(pb.RepeatState)
		label := fmt.Sprintf("Repeat %s", state)
		return m, m.control(label, func(ctx context.Context) error { return m.repo.SetRepeat(ctx, state, "") })
	}

	return m, nil
}

// View renders the player.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Now Playing"))
	b.WriteString("\n")

	switch {
	case !m.loaded:
		fmt.Fprintf(&b, "%s Connecting to Spotify...\n", m.spinner.View())
	case m.playback == nil && m.err == nil:
		b.WriteString(styles.muted.Render("Nothing is playing (no active device)."))
		b.WriteString("\n")
	case m.playback != nil:
		b.WriteString(m.renderPlayback())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render("Error: " + shared.UserMessage(m.err)))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(styles.muted.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderPlayback() string {
	pb := m.playback
	var b strings.Builder

	state := styles.paused.Render("⏸ Paused")
	if pb.IsPlaying {
		state = styles.accent.Render("▶ Playing")
	}

	if pb.Item == nil {
		fmt.Fprintf(&b, "%s  %s\n", state, styles.muted.Render(nonEmpty(pb.CurrentlyPlayingType, "unknown")+" (not a track)"))
	} else {
		t := pb.Item
		fmt.Fprintf(&b, "%s\n", styles.track.Render(t.Name))
		fmt.Fprintf(&b, "%s\n", t.ArtistNames())
		if t.Album.Name != "" {
			fmt.Fprintf(&b, "%s\n", styles.muted.Render(t.Album.Name))
		}

		pos := m.Position()
		bar := formatter.ProgressBar(pos, t.Duration, m.barWidth())
		fmt.Fprintf(&b, "\n%s  %s %s %s\n", state,
			formatter.FormatDuration(pos), styles.bar.Render(bar), formatter.FormatDuration(t.Duration))
	}

	fmt.Fprintf(&b, "\nDevice: %s", nonEmpty(pb.Device.Name, "unknown"))
	if pb.Device.HasVolume {
		fmt.Fprintf(&b, "  vol %d%%", pb.Device.VolumePercent)
	}
	fmt.Fprintf(&b, "\nShuffle: %s  Repeat: %s\n", onOff(pb.ShuffleState), pb.RepeatState)
	return b.String()
}

// Position estimates the playback position between polls.
func (m *Model) Position() time.Duration {
	pb := m.playback
	if pb == nil || pb.Item == nil {
		return 0
	}

	pos := pb.Progress
	if pb.IsPlaying && !m.fetchedAt.IsZero() {
		pos += m.now().Sub(m.fetchedAt)
	}
	return min(max(pos, 0), pb.Item.Duration)
}

func (m *Model) barWidth() int {
	if m.width <= 0 {
		return defaultBarWidth
	}
	// leave room for the state label and both timestamps
	return max(min(m.width-32, 60), 10)
}

func (m *Model) fetch() tea.Cmd {
	return func() tea.Msg {
		pb, err := m.repo.GetCurrentPlayback(m.ctx)
		return playbackMsg{playback: pb, err: err, at: m.now()}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) control(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(m.ctx)}
	}
}

// NextRepeat cycles off, context, track.
func NextRepeat(s models.RepeatState) models.RepeatState {
	switch s {
	case models.RepeatOff:
		return models.RepeatContext
	case models.RepeatContext:
		return models.RepeatTrack
	default:
		return models.RepeatOff
	}
}

// Run starts the watch view on the terminal and blocks until the user quits or ctx ends.
func Run(ctx context.Context, repo services.Repository, interval time.Duration) error {
	model := NewModel(ctx, repo, interval)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running watch view: %w", err)
	}

	return model.Err()
}

func isAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenInvalid) ||
		errors.Is(err, shared.ErrUnauthorized)
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
