package cli

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/nativepkg/pkg/registry"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listLockedStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// VersionPickerModel - Interactive version selection
// =============================================================================

// VersionPickerModel is the bubbletea model behind "dependency add --pick".
type VersionPickerModel struct {
	ID       string
	Versions []registry.Summary
	Locked   string
	Cursor   int
	Offset   int
	Height   int
	Selected *registry.Summary
}

// NewVersionPickerModel lists versions newest first with the cursor on
// the locked version, if any.
func NewVersionPickerModel(id string, versions []registry.Summary, locked string) VersionPickerModel {
	m := VersionPickerModel{ID: id, Versions: versions, Locked: locked, Height: 15}
	for i, v := range versions {
		if v.Version == locked {
			m.Cursor = i
			m.clampOffset()
			break
		}
	}
	return m
}

func (m VersionPickerModel) Init() tea.Cmd {
	return nil
}

func (m VersionPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Versions)-1 {
				m.Cursor++
			}
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			m.Cursor = max(len(m.Versions)-1, 0)
		case "enter":
			if len(m.Versions) == 0 {
				return m, tea.Quit
			}
			v := m.Versions[m.Cursor]
			m.Selected = &v
			return m, tea.Quit
		}
		m.clampOffset()
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
		m.clampOffset()
	}
	return m, nil
}

func (m *VersionPickerModel) clampOffset() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m VersionPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select a version of " + m.ID))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Versions))
	for i := m.Offset; i < end; i++ {
		v := m.Versions[i].Version
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := cursor + v
		if v == m.Locked {
			line += " " + listDimStyle.Render("(locked)")
		}

		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case v == m.Locked:
			b.WriteString(listLockedStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(m.Versions) == 0 {
		b.WriteString(listDimStyle.Render("  no published versions"))
		return b.String()
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Versions))))
	return b.String()
}

// pickVersion runs the picker. It returns nil when the user quits.
func pickVersion(in io.Reader, out io.Writer, id string, versions []registry.Summary, locked string) (*registry.Summary, error) {
	p := tea.NewProgram(NewVersionPickerModel(id, versions, locked), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("version picker: %w", err)
	}
	return final.(VersionPickerModel).Selected, nil
}
