package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"polychat/internal/chats"
)

var (
	chatViewportStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("238"))
	userLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	botLabelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	systemStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	chatTitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	loadingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	loadingTimerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	promptIndicator   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

// LoadingTickMsg is sent periodically to update the loading timer display.
type LoadingTickMsg struct{}

// ChatModel renders the active chat session and owns the composer input.
type ChatModel struct {
	viewport       viewport.Model
	textInput      textinput.Model
	title          string
	messages       []chats.Message
	notices        []string
	renderer       *glamour.TermRenderer
	width          int
	height         int
	isLoading      bool
	loadingStarted time.Time
}

func NewChatModel() *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask anything..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 50

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return &ChatModel{
		viewport:  vp,
		textInput: ti,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if _, ok := msg.(LoadingTickMsg); ok {
		// Re-render only; View picks up the new elapsed time.
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// SetSize resizes the view and rebuilds the markdown renderer for the new
// wrap width.
func (m *ChatModel) SetSize(w, h int, darkMode bool) {
	if w == 0 || h == 0 {
		return
	}
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h - 3
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.textInput.Width = w - 4

	style := "light"
	if darkMode {
		style = "dark"
	}
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(w-6),
	)
	m.renderMessages()
}

// SetChat replaces the rendered session.
func (m *ChatModel) SetChat(c *chats.Chat) {
	if c == nil {
		m.title = ""
		m.messages = nil
	} else {
		m.title = c.Title
		m.messages = append([]chats.Message(nil), c.Messages...)
	}
	m.notices = nil
	m.renderMessages()
	m.viewport.GotoBottom()
}

// Messages returns the current message list including streaming state.
func (m *ChatModel) Messages() []chats.Message {
	return append([]chats.Message(nil), m.messages...)
}

func (m *ChatModel) Append(msg chats.Message) {
	m.messages = append(m.messages, msg)
	m.renderMessages()
	m.viewport.GotoBottom()
}

// StreamToken appends a token to the trailing assistant message, creating it
// when the stream starts.
func (m *ChatModel) StreamToken(token string) {
	if n := len(m.messages); n > 0 && m.messages[n-1].IsWriting {
		m.messages[n-1].Text += token
	} else {
		streaming := chats.NewMessage(chats.SenderAssistant, token)
		streaming.IsWriting = true
		m.messages = append(m.messages, streaming)
	}
	m.renderMessages()
	m.viewport.GotoBottom()
}

// FinishStream marks the trailing assistant message as settled and returns
// the final message list.
func (m *ChatModel) FinishStream(finalText string) []chats.Message {
	if n := len(m.messages); n > 0 && m.messages[n-1].IsWriting {
		m.messages[n-1].IsWriting = false
		if finalText != "" {
			m.messages[n-1].Text = finalText
		}
	} else if finalText != "" {
		m.messages = append(m.messages, chats.NewMessage(chats.SenderAssistant, finalText))
	}
	m.renderMessages()
	m.viewport.GotoBottom()
	return m.Messages()
}

// AddNotice shows a transient system line below the conversation. Notices are
// never persisted.
func (m *ChatModel) AddNotice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > 5 {
		m.notices = m.notices[len(m.notices)-5:]
	}
	m.renderMessages()
	m.viewport.GotoBottom()
}

func (m *ChatModel) SetLoading(loading bool) {
	m.isLoading = loading
	if loading {
		m.loadingStarted = time.Now()
	}
}

func (m *ChatModel) IsLoading() bool {
	return m.isLoading
}

func loadingTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return LoadingTickMsg{}
	})
}

func (m *ChatModel) GetInputValue() string {
	return m.textInput.Value()
}

func (m *ChatModel) SetInputValue(v string) {
	m.textInput.SetValue(v)
	m.textInput.CursorEnd()
}

func (m *ChatModel) ClearInput() {
	m.textInput.Reset()
}

func (m *ChatModel) renderMessages() {
	contentWidth := m.viewport.Width
	if contentWidth <= 0 {
		contentWidth = 80
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(chatTitleStyle.Render(m.title))
		b.WriteString("\n\n")
	}
	for _, msg := range m.messages {
		switch msg.From {
		case chats.SenderUser:
			b.WriteString(wrapWithPrefix(userLabelStyle.Render("You: "), msg.Text, contentWidth))
		default:
			b.WriteString(botLabelStyle.Render("Bot:"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Text, contentWidth))
			if msg.IsWriting {
				b.WriteString(systemStyle.Render("▌"))
			}
		}
		b.WriteString("\n")
	}
	for _, notice := range m.notices {
		b.WriteString(systemStyle.Render(wrapToWidth(notice, contentWidth)))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

func (m *ChatModel) renderMarkdown(text string, width int) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	return wrapToWidth(text, width) + "\n"
}

func (m *ChatModel) View() string {
	var loading string
	if m.isLoading {
		elapsed := time.Since(m.loadingStarted).Round(time.Second)
		loading = loadingStyle.Render("● thinking") + " " + loadingTimerStyle.Render(fmt.Sprintf("(%s)", elapsed))
	}

	input := promptIndicator.Render("> ") + m.textInput.View()
	return lipgloss.JoinVertical(lipgloss.Left,
		chatViewportStyle.Render(m.viewport.View()),
		loading,
		input,
	)
}
