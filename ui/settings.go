package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"clipShuffle/config"
)

// settingsModel is the folder and clip-bounds editor. It works on a copy of
// the settings; nothing applies until the user confirms with enter.
type settingsModel struct {
	cfg    config.Settings
	input  textinput.Model
	adding bool
	cursor int
}

func newSettingsModel(cfg config.Settings) settingsModel {
	ti := textinput.New()
	ti.Placeholder = "/path/to/videos"
	ti.CharLimit = 500
	ti.Width = 60
	return settingsModel{cfg: cfg, input: ti}
}

// update handles one key. done reports that the dialog closed; cancelled
// distinguishes esc from a confirming enter.
func (s *settingsModel) update(msg tea.KeyMsg) (done, cancelled bool, cmd tea.Cmd) {
	if s.adding {
		switch msg.String() {
		case "enter":
			path := strings.TrimSpace(s.input.Value())
			if path != "" {
				s.cfg.Paths = append(s.cfg.Paths, path)
			}
			s.input.Reset()
			s.input.Blur()
			s.adding = false
		case "esc":
			s.input.Reset()
			s.input.Blur()
			s.adding = false
		default:
			s.input, cmd = s.input.Update(msg)
		}
		return false, false, cmd
	}

	switch msg.String() {
	case "enter":
		return true, false, nil
	case "esc", "q":
		return true, true, nil
	case "a":
		s.adding = true
		cmd = s.input.Focus()
	case "x", "delete":
		if s.cursor < len(s.cfg.Paths) {
			s.cfg.Paths = append(s.cfg.Paths[:s.cursor], s.cfg.Paths[s.cursor+1:]...)
			if s.cursor > 0 && s.cursor >= len(s.cfg.Paths) {
				s.cursor--
			}
		}
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor+1 < len(s.cfg.Paths) {
			s.cursor++
		}
	case "r":
		s.cfg.RandomStart = !s.cfg.RandomStart
	case "l":
		s.cfg.RandomLength = !s.cfg.RandomLength
	case "[":
		s.cfg.MinSeconds = max(s.cfg.MinSeconds-5, 1)
	case "]":
		s.cfg.MinSeconds = min(s.cfg.MinSeconds+5, s.cfg.MaxSeconds)
	case "{":
		s.cfg.MaxSeconds = max(s.cfg.MaxSeconds-5, s.cfg.MinSeconds)
	case "}":
		s.cfg.MaxSeconds += 5
	}
	return false, false, cmd
}

func (s *settingsModel) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")
	b.WriteString("Folders to use:\n")
	if len(s.cfg.Paths) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for i, p := range s.cfg.Paths {
		marker := "  "
		if i == s.cursor && !s.adding {
			marker = "> "
		}
		b.WriteString(marker + p + "\n")
	}
	if s.adding {
		b.WriteString("\nAdd folder: " + s.input.View() + "\n")
	}

	check := func(on bool) string {
		if on {
			return "[x]"
		}
		return "[ ]"
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s (r) pick random start point\n", check(s.cfg.RandomStart)))
	b.WriteString(fmt.Sprintf("%s (l) play random clip length\n", check(s.cfg.RandomLength)))
	b.WriteString(fmt.Sprintf("    min seconds: %d  ([ / ])\n", s.cfg.MinSeconds))
	b.WriteString(fmt.Sprintf("    max seconds: %d  ({ / })\n", s.cfg.MaxSeconds))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("a add folder · x remove · enter save · esc cancel"))
	return boxStyle.Render(b.String())
}
