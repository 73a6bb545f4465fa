package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	selectModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205")).
				Background(lipgloss.Color("235")).
				Padding(1, 2)
	selectTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	selectHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	selectItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	selectOffStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type SelectOption struct {
	Label   string
	ID      uint64
	Enabled bool
}

// SelectModal is a minimal vertical picker used for the chat switcher and the
// provider list.
type SelectModal struct {
	Title    string
	Hint     string
	Visible  bool
	Selected int
	Options  []SelectOption
	MaxWidth int
}

func NewSelectModal(title, hint string) *SelectModal {
	return &SelectModal{
		Title:    title,
		Hint:     hint,
		Visible:  false,
		Selected: -1,
	}
}

func (m *SelectModal) SetOptions(options []SelectOption) {
	m.Options = append([]SelectOption(nil), options...)
	m.Selected = m.firstEnabledIndex()
}

func (m *SelectModal) firstEnabledIndex() int {
	for i, opt := range m.Options {
		if opt.Enabled {
			return i
		}
	}
	return -1
}

func (m *SelectModal) Open() {
	m.Visible = true
	if m.Selected < 0 || m.Selected >= len(m.Options) || !m.Options[m.Selected].Enabled {
		m.Selected = m.firstEnabledIndex()
	}
}

func (m *SelectModal) SetWidth(width int) {
	m.MaxWidth = width
}

func (m *SelectModal) Close() {
	m.Visible = false
}

func (m *SelectModal) Move(delta int) {
	if len(m.Options) == 0 || m.Selected < 0 {
		return
	}
	next := m.Selected
	for {
		next += delta
		if next < 0 || next >= len(m.Options) {
			return
		}
		if m.Options[next].Enabled {
			m.Selected = next
			return
		}
	}
}

func (m *SelectModal) SelectedOption() (SelectOption, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		return SelectOption{}, false
	}
	opt := m.Options[m.Selected]
	if !opt.Enabled {
		return SelectOption{}, false
	}
	return opt, true
}

func (m *SelectModal) View() string {
	if !m.Visible {
		return ""
	}
	contentWidth := m.modalContentWidth()
	var lines []string
	for i, opt := range m.Options {
		prefix := "  "
		style := selectItemStyle
		if !opt.Enabled {
			style = selectOffStyle
		}
		if i == m.Selected {
			prefix = "> "
			style = selectSelStyle
		}
		line := prefix + opt.Label
		if contentWidth > 0 {
			line = wrapWithPrefix(prefix, opt.Label, contentWidth)
		}
		lines = append(lines, style.Render(line))
	}

	title := m.Title
	hint := m.Hint
	if contentWidth > 0 {
		title = wrapToWidth(title, contentWidth)
		hint = wrapToWidth(hint, contentWidth)
	}

	boxStyle := selectModalBoxStyle
	if m.MaxWidth > 0 {
		boxStyle = boxStyle.MaxWidth(m.MaxWidth)
	}

	return boxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s",
		selectTitleStyle.Render(title),
		strings.Join(lines, "\n"),
		selectHintStyle.Render(hint),
	))
}

func (m *SelectModal) modalContentWidth() int {
	if m.MaxWidth <= 0 {
		return 0
	}
	width := m.MaxWidth - 6
	if width < 20 {
		width = 20
	}
	return width
}
