package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	sbBaseStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
	sbModelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sbProviderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sbChatStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sbHintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type StatusBarModel struct {
	ModelName   string
	ProviderID  string
	ChatCount   int
	FetchStatus string
	hint        string
	width       int
}

func NewStatusBarModel() *StatusBarModel {
	return &StatusBarModel{
		ModelName: "no-model-selected",
	}
}

func (m *StatusBarModel) Init() tea.Cmd { return nil }

func (m *StatusBarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

func (m *StatusBarModel) SetModel(providerID, modelName string) {
	m.ProviderID = strings.TrimSpace(providerID)
	m.ModelName = strings.TrimSpace(modelName)
	if m.ModelName == "" {
		m.ModelName = "no-model-selected"
	}
}

func (m *StatusBarModel) SetChatCount(n int) {
	m.ChatCount = n
}

// SetFetchStatus shows which provider is currently being fetched; empty
// clears it.
func (m *StatusBarModel) SetFetchStatus(status string) {
	m.FetchStatus = strings.TrimSpace(status)
}

func (m *StatusBarModel) SetHint(hint string) {
	m.hint = strings.TrimSpace(hint)
}

func (m *StatusBarModel) View() string {
	provider := m.ProviderID
	if provider == "" {
		provider = "none"
	}
	parts := []string{
		sbProviderStyle.Render(fmt.Sprintf("[PROVIDER: %s]", provider)),
		sbModelStyle.Render(fmt.Sprintf("[MODEL: %s]", m.ModelName)),
		sbChatStyle.Render(fmt.Sprintf("[CHATS: %d]", m.ChatCount)),
	}
	if m.FetchStatus != "" {
		parts = append(parts, sbHintStyle.Render(fmt.Sprintf("[FETCHING: %s]", m.FetchStatus)))
	}
	if m.hint != "" {
		parts = append(parts, sbHintStyle.Render(m.hint))
	}
	return sbBaseStyle.Width(m.width).Render(strings.Join(parts, " | "))
}
