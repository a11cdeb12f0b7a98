// Package ui renders the terminal control surface for the player. The video
// itself lives in the mpv window; this view is the transport bar.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clipShuffle/config"
	"clipShuffle/shuffle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

type tickMsg time.Time

// Model is the Bubble Tea model. Each tick it runs one poll-loop iteration
// and snapshots the derived display values.
type Model struct {
	loop    *shuffle.Loop
	display shuffle.Display
	seekbar progress.Model
	idle    *IdleTracker

	// onApply lets main react to confirmed settings changes, e.g. to
	// repoint the folder watcher.
	onApply func(config.Settings)

	settings *settingsModel

	// Normal mode only: the time label toggles remaining vs elapsed.
	showElapsed bool

	width int
}

func NewModel(loop *shuffle.Loop, onApply func(config.Settings)) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60
	bar.ShowPercentage = false
	return Model{
		loop:    loop,
		seekbar: bar,
		idle:    NewIdleTracker(IdleTimeout),
		onApply: onApply,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(shuffle.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.loop.Tick()
		m.display = m.loop.Display()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.seekbar.Width = min(max(msg.Width-16, 20), 80)
		return m, nil

	case tea.KeyMsg:
		m.idle.Touch(time.Now())
		if m.settings != nil {
			return m.updateSettings(msg)
		}
		return m.updatePlayback(msg)
	}
	return m, nil
}

func (m Model) updatePlayback(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "space":
		m.loop.TogglePause()
	case "n":
		m.loop.Next()
	case "m":
		m.loop.ToggleMute()
	case "f":
		m.loop.ToggleFullscreen()
	case "t":
		m.showElapsed = !m.showElapsed
	case "left":
		m.loop.SeekBy(-5000)
	case "right":
		m.loop.SeekBy(5000)
	case "up":
		m.loop.AdjustVolume(5)
	case "down":
		m.loop.AdjustVolume(-5)
	case "s":
		s := newSettingsModel(m.loop.Config())
		m.settings = &s
		return m, nil
	default:
		return m, nil
	}
	// Apply the intent right away instead of waiting out the tick period.
	m.loop.Tick()
	m.display = m.loop.Display()
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	done, cancelled, cmd := m.settings.update(msg)
	if !done {
		return m, cmd
	}
	if !cancelled {
		cfg := m.settings.cfg
		m.loop.Apply(cfg)
		if m.onApply != nil {
			m.onApply(cfg)
		}
		m.loop.Tick()
		m.display = m.loop.Display()
	}
	m.settings = nil
	return m, cmd
}

func (m Model) View() string {
	if m.settings != nil {
		return m.settings.view()
	}

	d := m.display
	var b strings.Builder

	b.WriteString(titleStyle.Render("ClipShuffle"))
	b.WriteString("\n\n")

	switch d.State {
	case shuffle.StateIdle:
		msg := "No videos found.\nPress s to configure some video folders."
		if d.CatalogSize == 0 {
			b.WriteString(boxStyle.Render(warnStyle.Render(msg)))
			b.WriteString("\n")
			b.WriteString(m.footer())
			return b.String()
		}
	case shuffle.StateLoading, shuffle.StateAdvancing:
		b.WriteString(stateStyle.Render("opening "))
		b.WriteString(dimStyle.Render(filepath.Base(d.Path)))
		b.WriteString("\n")
	case shuffle.StatePlaying, shuffle.StatePaused:
		verb := "playing"
		if d.State == shuffle.StatePaused {
			verb = "paused "
		}
		b.WriteString(stateStyle.Render(verb + " "))
		b.WriteString(dimStyle.Render(filepath.Base(d.Path)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.seekbar.ViewAs(d.SeekFraction))
	b.WriteString("\n")
	b.WriteString(m.timeline(d))
	b.WriteString("\n\n")
	b.WriteString(m.audioLine(d))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

// timeline renders the elapsed/remaining readout: a clip countdown in clip
// mode, a toggleable elapsed/remaining label otherwise.
func (m Model) timeline(d shuffle.Display) string {
	if d.ClipMode {
		if !d.RemainingKnown {
			return timeStyle.Render("next clip in --:--")
		}
		return timeStyle.Render("next clip in -" + clock(d.RemainingMS))
	}
	if m.showElapsed {
		return timeStyle.Render(clock(d.PositionMS))
	}
	if !d.RemainingKnown {
		return timeStyle.Render("---:--")
	}
	return timeStyle.Render("-" + clock(d.RemainingMS))
}

func (m Model) audioLine(d shuffle.Display) string {
	vol := fmt.Sprintf("volume %3d%%", d.Volume)
	if d.Muted {
		vol += "  [muted]"
	}
	return dimStyle.Render(vol)
}

func (m Model) footer() string {
	if m.display.Fullscreen && m.idle.Idle(time.Now()) {
		return ""
	}
	help := "space pause · n next · ←/→ seek · ↑/↓ volume · m mute · f fullscreen · t time · s settings · q quit"
	return "\n" + dimStyle.Render(help)
}

// clock formats milliseconds as mm:ss, or h:mm:ss above an hour.
func clock(ms int64) string {
	s := max(ms/1000, 0)
	h := s / 3600
	m := (s % 3600) / 60
	s = s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
