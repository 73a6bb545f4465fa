package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polychat/internal/bots"
)

var modelModalBG = lipgloss.Color("235")

var (
	modelModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")).
				Background(modelModalBG).
				Padding(1, 2)
	modelModalTitleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Background(modelModalBG).Bold(true)
	modelModalHintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(modelModalBG)
	modelModalItemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(modelModalBG)
	modelModalSearchLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Background(modelModalBG).Bold(true)
	modelModalSearchValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(modelModalBG)
	modelModalSearchHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(modelModalBG)
	modelModalSearchCursor     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Background(modelModalBG)
)

// BotOption is one selectable model in the picker.
type BotOption struct {
	ProviderName string
	ProviderID   string
	BotID        string
	ModelName    string
}

func (b BotOption) FilterValue() string {
	return strings.TrimSpace(b.ProviderName + " " + b.ModelName)
}

func (b BotOption) Title() string {
	return strings.TrimSpace(b.ModelName)
}

func (b BotOption) Description() string {
	return strings.TrimSpace(b.ProviderName)
}

// ModelsModal lets the user pick the active model out of the combined bot
// list, with incremental search.
type ModelsModal struct {
	Visible        bool
	options        []BotOption
	filtered       []BotOption
	list           list.Model
	loading        bool
	loadingMessage string
	query          string
}

func NewModelsModal(options []BotOption) *ModelsModal {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("252")).Background(modelModalBG)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(lipgloss.Color("244")).Background(modelModalBG)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("213")).Background(modelModalBG).Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("183")).Background(modelModalBG).Bold(true)
	delegate.Styles.DimmedTitle = delegate.Styles.DimmedTitle.Background(modelModalBG)
	delegate.Styles.DimmedDesc = delegate.Styles.DimmedDesc.Background(modelModalBG)
	delegate.Styles.FilterMatch = delegate.Styles.FilterMatch.Background(modelModalBG)

	l := list.New(nil, delegate, 72, 14)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	m := &ModelsModal{list: l}
	m.SetOptions(options)
	return m
}

// SetBots rebuilds the options from the combined bot list.
func (m *ModelsModal) SetBots(all []bots.Bot, providerName func(string) string) {
	options := make([]BotOption, 0, len(all))
	for _, b := range all {
		name := b.Provider
		if providerName != nil {
			name = providerName(b.Provider)
		}
		options = append(options, BotOption{
			ProviderName: name,
			ProviderID:   b.Provider,
			BotID:        b.ID,
			ModelName:    b.Name,
		})
	}
	m.SetOptions(options)
}

func (m *ModelsModal) SetOptions(options []BotOption) {
	if m == nil {
		return
	}
	selectedID := m.selectedBotID()
	m.options = append([]BotOption(nil), options...)
	m.applyFilter(selectedID)
}

func (m *ModelsModal) SetSize(width, height int) {
	if m == nil || width <= 0 || height <= 0 {
		return
	}
	innerWidth := width - 10
	if innerWidth < 44 {
		innerWidth = 44
	}
	innerHeight := height - 14
	if innerHeight < 6 {
		innerHeight = 6
	}
	m.list.SetWidth(innerWidth)
	m.list.SetHeight(innerHeight)
}

func (m *ModelsModal) Open() {
	if m != nil {
		m.Visible = true
	}
}

func (m *ModelsModal) Close() {
	if m != nil {
		m.Visible = false
	}
}

func (m *ModelsModal) SetLoading(loadingMessage string) {
	if m == nil {
		return
	}
	m.loading = true
	m.loadingMessage = strings.TrimSpace(loadingMessage)
}

func (m *ModelsModal) ClearLoading() {
	if m == nil {
		return
	}
	m.loading = false
	m.loadingMessage = ""
}

func (m *ModelsModal) Update(msg tea.Msg) tea.Cmd {
	if m == nil || m.loading {
		return nil
	}

	switch typed := msg.(type) {
	case tea.KeyMsg:
		switch typed.String() {
		case "backspace", "ctrl+h":
			if m.query != "" {
				m.query = trimLastRune(m.query)
				m.applyFilter(m.selectedBotID())
			}
			return nil
		case "ctrl+u":
			if m.query != "" {
				m.query = ""
				m.applyFilter("")
			}
			return nil
		}

		if typed.Type == tea.KeyRunes && len(typed.Runes) > 0 && !typed.Alt {
			m.query += string(typed.Runes)
			m.applyFilter(m.selectedBotID())
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// SelectByBotID moves the cursor onto the bot with the given id, resetting
// the search if the bot is filtered out.
func (m *ModelsModal) SelectByBotID(botID string) {
	if m == nil || strings.TrimSpace(botID) == "" {
		return
	}
	for idx, option := range m.filtered {
		if option.BotID == botID {
			m.list.Select(idx)
			return
		}
	}
	for _, option := range m.options {
		if option.BotID == botID {
			m.query = ""
			m.applyFilter(botID)
			return
		}
	}
}

func (m *ModelsModal) SelectedBot() (BotOption, bool) {
	if m == nil {
		return BotOption{}, false
	}
	item := m.list.SelectedItem()
	if item == nil {
		return BotOption{}, false
	}
	option, ok := item.(BotOption)
	return option, ok
}

func (m *ModelsModal) View() string {
	if m == nil || !m.Visible {
		return ""
	}
	title := modelModalTitleStyle.Render("Select Model")
	if m.loading {
		body := modelModalItemStyle.Render("Fetching models...\n\n" + m.loadingMessage)
		hint := modelModalHintStyle.Render("Please wait")
		return modelModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, body, hint))
	}
	if len(m.options) == 0 {
		body := modelModalItemStyle.Render("No models available. Enable a provider first.")
		hint := modelModalHintStyle.Render("esc: close")
		return modelModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, body, hint))
	}

	body := m.list.View()
	if len(m.filtered) == 0 {
		body = modelModalItemStyle.Render("No models match the search.")
	}

	searchText := strings.TrimSpace(m.query)
	if searchText == "" {
		searchText = modelModalSearchHintStyle.Render("type to search models")
	} else {
		searchText = modelModalSearchValueStyle.Render(searchText)
	}

	hint := modelModalHintStyle.Render("type: search  backspace: erase  enter: select  esc: close")

	return modelModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s %s%s\n\n%s\n\n%s",
		title,
		modelModalSearchLabelStyle.Render("Search:"),
		searchText,
		modelModalSearchCursor.Render("█"),
		body,
		hint,
	))
}

func (m *ModelsModal) applyFilter(preferredBotID string) {
	if m == nil {
		return
	}
	query := strings.ToLower(strings.TrimSpace(m.query))
	filtered := make([]BotOption, 0, len(m.options))
	for _, option := range m.options {
		if query != "" {
			searchSpace := strings.ToLower(option.ModelName + " " + option.ProviderName + " " + option.ProviderID)
			if !strings.Contains(searchSpace, query) {
				continue
			}
		}
		filtered = append(filtered, option)
	}

	m.filtered = filtered
	items := make([]list.Item, 0, len(filtered))
	for _, option := range filtered {
		items = append(items, option)
	}
	m.list.SetItems(items)

	if len(filtered) == 0 {
		return
	}
	if preferredBotID != "" {
		for idx, option := range filtered {
			if option.BotID == preferredBotID {
				m.list.Select(idx)
				return
			}
		}
	}
	if m.list.Index() < 0 || m.list.Index() >= len(filtered) {
		m.list.Select(0)
	}
}

func (m *ModelsModal) selectedBotID() string {
	selected, ok := m.SelectedBot()
	if !ok {
		return ""
	}
	return selected.BotID
}

func trimLastRune(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}
