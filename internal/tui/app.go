// Package tui is the interactive terminal frontend. It drives the fetch
// orchestrator through bubbletea messages and binds the chat, preferences and
// model stores to the screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polychat/internal/bots"
	"polychat/internal/chats"
	"polychat/internal/config"
	"polychat/internal/mcp"
	"polychat/internal/orchestrator"
	"polychat/internal/prefs"
	"polychat/internal/providers"
	"polychat/internal/registry"
	"polychat/internal/state"
)

var appStyle = lipgloss.NewStyle().Margin(0, 0)

// FetchResultMsg reports one provider's model fetch back to the update loop.
type FetchResultMsg struct {
	Fetch *orchestrator.Fetch
	Bots  []bots.Bot
	Err   error
}

// CycleDoneMsg is published when the whole fetch cycle settled.
type CycleDoneMsg struct {
	Result orchestrator.CycleResult
}

// StreamTokenMsg and StreamDoneMsg carry the id of the chat that issued the
// completion, so a reply settling after a chat switch still lands in the
// right file.
type StreamTokenMsg struct {
	Token  string
	ChatID uint64
}

type StreamDoneMsg struct {
	Text   string
	Err    error
	ChatID uint64
}

type PrefsChangedMsg struct{}

type NoticeMsg struct{ Text string }

type AppModel struct {
	cfg       *config.Config
	prefs     *prefs.Preferences
	store     *chats.Store
	reg       *registry.Manager
	orc       *orchestrator.Orchestrator
	db        *state.DB
	watcher   *prefs.Watcher
	chat      *ChatModel
	statusbar *StatusBarModel

	modelsModal *ModelsModal
	chatsModal  *SelectModal

	currentBotID string
	streamCh     chan tea.Msg
	completing   bool

	inputHistory      []string
	inputHistoryIndex int
	inputDraft        string
	historyBrowsing   bool

	width  int
	height int
}

func NewAppModel(cfg *config.Config, p *prefs.Preferences, store *chats.Store, reg *registry.Manager, orc *orchestrator.Orchestrator, db *state.DB, watcher *prefs.Watcher) *AppModel {
	m := &AppModel{
		cfg:         cfg,
		prefs:       p,
		store:       store,
		reg:         reg,
		orc:         orc,
		db:          db,
		watcher:     watcher,
		chat:        NewChatModel(),
		statusbar:   NewStatusBarModel(),
		modelsModal: NewModelsModal(nil),
		chatsModal:  NewSelectModal("Chats", "up/down: navigate  enter: open  d: delete  esc: close"),
	}
	m.chat.SetChat(store.Current())
	m.statusbar.SetChatCount(len(store.All()))
	m.currentBotID = strings.TrimSpace(p.CurrentChatModel)
	m.syncModelDisplay()
	m.loadInputHistoryForCurrentChat()
	return m
}

func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.chat.Init(), m.statusbar.Init()}
	cmds = append(cmds, m.startCycleCmd(true))
	if m.watcher != nil {
		cmds = append(cmds, waitForPrefsChange(m.watcher.Events))
	}
	return tea.Batch(cmds...)
}

// startCycleCmd kicks off a fetch cycle. When nothing needs fetching it
// degrades to the final cycle result.
func (m *AppModel) startCycleCmd(force bool) tea.Cmd {
	fetch, result := m.orc.StartCycle(m.orc.EnabledProviders(), force)
	switch {
	case fetch != nil:
		m.statusbar.SetFetchStatus(fetch.ProviderID)
		return m.fetchCmd(fetch)
	case result != nil:
		res := *result
		return func() tea.Msg { return CycleDoneMsg{Result: res} }
	default:
		return nil
	}
}

func (m *AppModel) fetchCmd(f *orchestrator.Fetch) tea.Cmd {
	return func() tea.Msg {
		list, err := f.Client.ListBots(context.Background())
		return FetchResultMsg{Fetch: f, Bots: list, Err: err}
	}
}

func waitForPrefsChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return PrefsChangedMsg{}
	}
}

func waitForStream(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusbar.SetWidth(msg.Width)
		m.chat.SetSize(msg.Width, msg.Height-1, m.prefs.DarkMode)
		m.modelsModal.SetSize(msg.Width, msg.Height)
		modalWidth := msg.Width - 4
		if modalWidth < 32 {
			modalWidth = 32
		}
		m.chatsModal.SetWidth(modalWidth)

	case FetchResultMsg:
		next, result := m.orc.CompleteFetch(msg.Fetch, msg.Bots, msg.Err)
		if msg.Err != nil {
			m.chat.AddNotice(fmt.Sprintf("%s: %s", msg.Fetch.ProviderID, mcp.Scrub(msg.Err.Error())))
		}
		switch {
		case next != nil:
			m.statusbar.SetFetchStatus(next.ProviderID)
			cmds = append(cmds, m.fetchCmd(next))
		case result != nil:
			m.statusbar.SetFetchStatus("")
			res := *result
			cmds = append(cmds, func() tea.Msg { return CycleDoneMsg{Result: res} })
		}

	case CycleDoneMsg:
		m.applyCycle(msg.Result)

	case PrefsChangedMsg:
		m.reloadPrefs()
		if m.orc.NeedsCycle(m.orc.EnabledProviders()) {
			cmds = append(cmds, m.startCycleCmd(false))
		}
		if m.watcher != nil {
			cmds = append(cmds, waitForPrefsChange(m.watcher.Events))
		}

	case StreamTokenMsg:
		if m.chatDisplayed(msg.ChatID) {
			m.chat.StreamToken(msg.Token)
		}
		cmds = append(cmds, waitForStream(m.streamCh))

	case StreamDoneMsg:
		m.completing = false
		m.chat.SetLoading(false)
		displayed := m.chatDisplayed(msg.ChatID)
		switch {
		case msg.Err != nil:
			if displayed {
				m.persistMessages(msg.ChatID, m.chat.FinishStream(""))
			}
			m.chat.AddNotice(mcp.Scrub(msg.Err.Error()))
		case displayed:
			m.persistMessages(msg.ChatID, m.chat.FinishStream(msg.Text))
		default:
			// The user moved on mid-stream; append straight to the
			// originating chat's record.
			m.appendAssistantReply(msg.ChatID, msg.Text)
		}

	case NoticeMsg:
		m.chat.AddNotice(msg.Text)

	case LoadingTickMsg:
		if m.chat.IsLoading() {
			cmds = append(cmds, loadingTickCmd())
		}
	}

	chatModel, cmd := m.chat.Update(msg)
	m.chat = chatModel.(*ChatModel)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	key := msg.String()

	if key == "ctrl+c" {
		if strings.TrimSpace(m.chat.GetInputValue()) != "" {
			m.chat.ClearInput()
			return m, nil, true
		}
		return m, tea.Quit, true
	}

	if m.modelsModal.Visible {
		switch key {
		case "esc":
			m.modelsModal.Close()
			return m, nil, true
		case "enter":
			if option, ok := m.modelsModal.SelectedBot(); ok {
				m.applySelectedBot(option)
			}
			m.modelsModal.Close()
			return m, nil, true
		default:
			return m, m.modelsModal.Update(msg), true
		}
	}

	if m.chatsModal.Visible {
		switch key {
		case "esc":
			m.chatsModal.Close()
			return m, nil, true
		case "up":
			m.chatsModal.Move(-1)
			return m, nil, true
		case "down":
			m.chatsModal.Move(1)
			return m, nil, true
		case "d":
			if opt, ok := m.chatsModal.SelectedOption(); ok {
				m.deleteChat(opt.ID)
				m.refreshChatsModal()
			}
			return m, nil, true
		case "enter":
			if opt, ok := m.chatsModal.SelectedOption(); ok {
				m.switchChat(opt.ID)
			}
			m.chatsModal.Close()
			return m, nil, true
		default:
			return m, nil, true
		}
	}

	switch key {
	case "ctrl+p":
		m.modelsModal.SelectByBotID(m.currentBotID)
		m.modelsModal.Open()
		return m, nil, true
	case "ctrl+l":
		m.refreshChatsModal()
		m.chatsModal.Open()
		return m, nil, true
	case "ctrl+n":
		m.newChat()
		return m, nil, true
	case "ctrl+t":
		m.toggleDarkMode()
		return m, nil, true
	case "ctrl+r":
		return m, m.startCycleCmd(true), true
	case "up":
		m.navigateInputHistory(-1)
		return m, nil, true
	case "down":
		m.navigateInputHistory(1)
		return m, nil, true
	case "enter":
		return m, m.submitInput(), true
	}

	m.resetInputHistoryNavigation()
	return m, nil, false
}

func (m *AppModel) submitInput() tea.Cmd {
	text := strings.TrimSpace(m.chat.GetInputValue())
	if text == "" || m.completing {
		return nil
	}
	if m.currentBotID == "" {
		m.chat.AddNotice("No model selected. Press ctrl+p to pick one.")
		return nil
	}

	current := m.store.Current()
	if current == nil {
		m.newChat()
		current = m.store.Current()
		if current == nil {
			return nil
		}
	}

	m.appendInputHistory(current.ID, text)
	m.chat.ClearInput()
	m.chat.Append(chats.NewMessage(chats.SenderUser, text))
	m.persistMessages(current.ID, m.chat.Messages())
	m.chat.SetLoading(true)
	m.completing = true

	return tea.Batch(m.completionCmd(m.currentBotID, current.ID, m.chat.Messages()), loadingTickCmd())
}

// completionCmd runs the chat completion on its own goroutine, feeding tokens
// through a channel consumed by waitForStream.
func (m *AppModel) completionCmd(botID string, chatID uint64, history []chats.Message) tea.Cmd {
	client, ok := m.reg.ClientForBot(botID)
	if !ok {
		m.completing = false
		m.chat.SetLoading(false)
		return func() tea.Msg {
			return NoticeMsg{Text: "Selected model is not available from any configured provider."}
		}
	}

	modelName, _ := bots.ParseID(botID)
	wire := make([]providers.Message, 0, len(history))
	for _, msg := range history {
		role := "assistant"
		if msg.From == chats.SenderUser {
			role = "user"
		}
		wire = append(wire, providers.Message{Role: role, Content: msg.Text})
	}

	ch := make(chan tea.Msg, 64)
	m.streamCh = ch
	go func() {
		resp, err := client.Complete(context.Background(), modelName, wire, func(token string) {
			ch <- StreamTokenMsg{Token: token, ChatID: chatID}
		})
		ch <- StreamDoneMsg{Text: resp.Text, Err: err, ChatID: chatID}
	}()
	return waitForStream(ch)
}

// chatDisplayed reports whether the given chat is the one on screen.
func (m *AppModel) chatDisplayed(chatID uint64) bool {
	current := m.store.Current()
	return current != nil && current.ID == chatID
}

func (m *AppModel) persistMessages(chatID uint64, messages []chats.Message) {
	if err := m.store.UpdateMessages(chatID, messages); err != nil {
		m.chat.AddNotice(fmt.Sprintf("warning: failed to save chat: %v", err))
	}
	if current := m.store.Current(); current != nil && current.ID == chatID {
		m.chat.title = current.Title
	}
	m.statusbar.SetChatCount(len(m.store.All()))
}

// appendAssistantReply persists a settled reply into a chat that is no longer
// displayed. The render is dropped; the record is not.
func (m *AppModel) appendAssistantReply(chatID uint64, text string) {
	if text == "" {
		return
	}
	chat, err := m.store.Get(chatID)
	if err != nil {
		return
	}
	messages := append(append([]chats.Message(nil), chat.Messages...),
		chats.NewMessage(chats.SenderAssistant, text))
	if err := m.store.UpdateMessages(chatID, messages); err != nil {
		m.chat.AddNotice(fmt.Sprintf("warning: failed to save chat: %v", err))
	}
}

func (m *AppModel) applyCycle(res orchestrator.CycleResult) {
	m.modelsModal.SetBots(res.Bots, m.providerLabel)
	if res.Restored {
		if res.Selection.Found {
			m.setCurrentBot(res.Selection.Bot.ID)
		} else {
			m.setCurrentBot("")
		}
	}
	m.syncModelDisplay()
}

// applySelectedBot handles an explicit user pick from the modal. The saved
// model is only rewritten when the selection actually changed.
func (m *AppModel) applySelectedBot(option BotOption) {
	if option.BotID == "" || option.BotID == m.currentBotID {
		return
	}
	m.setCurrentBot(option.BotID)
	if err := m.prefs.SetCurrentChatModel(option.BotID); err != nil {
		m.chat.AddNotice(fmt.Sprintf("warning: failed to save model selection: %v", err))
	}
	m.syncModelDisplay()
}

func (m *AppModel) setCurrentBot(botID string) {
	m.currentBotID = botID
	if current := m.store.Current(); current != nil && botID != "" && current.BotID != botID {
		if err := m.store.SetBot(current.ID, botID); err != nil {
			m.chat.AddNotice(fmt.Sprintf("warning: failed to save chat model: %v", err))
		}
	}
}

func (m *AppModel) syncModelDisplay() {
	if m.currentBotID == "" {
		m.statusbar.SetModel("", "")
		return
	}
	name, provider := bots.ParseID(m.currentBotID)
	m.statusbar.SetModel(provider, name)
}

func (m *AppModel) providerLabel(providerID string) string {
	if pp, err := m.prefs.Provider(providerID); err == nil {
		return pp.Name
	}
	return providerID
}

func (m *AppModel) reloadPrefs() {
	fresh := prefs.Load(m.cfg.Paths.DataDir)
	*m.prefs = *fresh
	saved := strings.TrimSpace(m.prefs.CurrentChatModel)
	if saved != m.currentBotID {
		m.currentBotID = saved
		m.syncModelDisplay()
	}
}

func (m *AppModel) newChat() {
	c, err := m.store.Create(m.currentBotID)
	if err != nil {
		m.chat.AddNotice(fmt.Sprintf("failed to create chat: %v", err))
		return
	}
	if c.BotID != "" {
		m.currentBotID = c.BotID
	}
	m.chat.SetChat(c)
	m.statusbar.SetChatCount(len(m.store.All()))
	m.loadInputHistoryForCurrentChat()
	m.syncModelDisplay()
}

func (m *AppModel) switchChat(id uint64) {
	if err := m.store.SetCurrent(id); err != nil {
		m.chat.AddNotice(fmt.Sprintf("failed to switch chat: %v", err))
		return
	}
	current := m.store.Current()
	m.chat.SetChat(current)
	if current != nil && current.BotID != "" {
		m.currentBotID = current.BotID
	}
	m.loadInputHistoryForCurrentChat()
	m.syncModelDisplay()
}

func (m *AppModel) deleteChat(id uint64) {
	if err := m.store.Delete(id); err != nil {
		m.chat.AddNotice(fmt.Sprintf("failed to delete chat: %v", err))
		return
	}
	m.chat.SetChat(m.store.Current())
	m.statusbar.SetChatCount(len(m.store.All()))
	m.loadInputHistoryForCurrentChat()
}

func (m *AppModel) refreshChatsModal() {
	all := m.store.All()
	options := make([]SelectOption, 0, len(all))
	for _, c := range all {
		options = append(options, SelectOption{Label: c.Title, ID: c.ID, Enabled: true})
	}
	m.chatsModal.SetOptions(options)
	if current := m.store.Current(); current != nil {
		for i, opt := range options {
			if opt.ID == current.ID {
				m.chatsModal.Selected = i
				break
			}
		}
	}
}

func (m *AppModel) toggleDarkMode() {
	if err := m.prefs.SetDarkMode(!m.prefs.DarkMode); err != nil {
		m.chat.AddNotice(fmt.Sprintf("warning: failed to save theme: %v", err))
	}
	m.chat.SetSize(m.width, m.height-1, m.prefs.DarkMode)
}

func (m *AppModel) loadInputHistoryForCurrentChat() {
	m.inputHistory = nil
	m.resetInputHistoryNavigation()
	current := m.store.Current()
	if m.db == nil || current == nil {
		return
	}
	history, err := m.db.InputHistory(context.Background(), current.ID)
	if err != nil {
		return
	}
	m.inputHistory = history
	m.resetInputHistoryNavigation()
}

func (m *AppModel) appendInputHistory(chatID uint64, entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	m.inputHistory = append(m.inputHistory, entry)
	if len(m.inputHistory) > state.DefaultInputHistoryLimit {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-state.DefaultInputHistoryLimit:]
	}
	m.resetInputHistoryNavigation()

	if m.db != nil {
		if err := m.db.AppendInputHistory(context.Background(), chatID, entry); err != nil {
			m.chat.AddNotice(fmt.Sprintf("warning: failed to persist input history: %v", err))
		}
	}
}

func (m *AppModel) resetInputHistoryNavigation() {
	m.inputHistoryIndex = len(m.inputHistory)
	m.inputDraft = ""
	m.historyBrowsing = false
}

func (m *AppModel) navigateInputHistory(delta int) bool {
	if len(m.inputHistory) == 0 || delta == 0 {
		return false
	}

	if !m.historyBrowsing {
		m.inputDraft = m.chat.GetInputValue()
		m.inputHistoryIndex = len(m.inputHistory)
		m.historyBrowsing = true
	}

	switch {
	case delta < 0:
		if m.inputHistoryIndex > 0 {
			m.inputHistoryIndex--
		}
		m.chat.SetInputValue(m.inputHistory[m.inputHistoryIndex])
		return true
	case delta > 0:
		if m.inputHistoryIndex < len(m.inputHistory)-1 {
			m.inputHistoryIndex++
			m.chat.SetInputValue(m.inputHistory[m.inputHistoryIndex])
			return true
		}
		m.inputHistoryIndex = len(m.inputHistory)
		m.chat.SetInputValue(m.inputDraft)
		m.historyBrowsing = false
		return true
	default:
		return false
	}
}

func (m *AppModel) View() string {
	base := appStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.chat.View(),
		m.statusbar.View(),
	))

	for _, overlay := range []string{m.modelsModal.View(), m.chatsModal.View()} {
		if overlay == "" {
			continue
		}
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
		}
		return overlay
	}
	return base
}
