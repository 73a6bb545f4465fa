package tui

import (
	"strings"
	"testing"
	"time"

	"polychat/internal/bots"
	"polychat/internal/chats"
	"polychat/internal/config"
	"polychat/internal/orchestrator"
	"polychat/internal/prefs"
	"polychat/internal/registry"
)

func newTestApp(t *testing.T) *AppModel {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Paths.DataDir = dir

	p := prefs.Load(dir)
	store, err := chats.Open(dir)
	if err != nil {
		t.Fatalf("open chat store: %v", err)
	}
	reg := registry.NewManager()
	orc := orchestrator.New(reg, p, 5*time.Second, nil)

	return NewAppModel(cfg, p, store, reg, orc, nil, nil)
}

func TestApplySelectedBotPersistsSelection(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.applySelectedBot(BotOption{
		ProviderName: "OpenAI",
		ProviderID:   "openai",
		BotID:        "6;gpt-4o@openai",
		ModelName:    "gpt-4o",
	})

	if app.currentBotID != "6;gpt-4o@openai" {
		t.Fatalf("expected current bot updated, got %q", app.currentBotID)
	}
	if app.prefs.CurrentChatModel != "6;gpt-4o@openai" {
		t.Fatalf("expected selection saved, got %q", app.prefs.CurrentChatModel)
	}
	view := app.statusbar.View()
	if !strings.Contains(view, "gpt-4o") || !strings.Contains(view, "openai") {
		t.Fatalf("expected status bar to show the selection, got %q", view)
	}
}

func TestApplySelectedBotSkipsUnchangedSelection(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.currentBotID = "6;gpt-4o@openai"

	app.applySelectedBot(BotOption{BotID: "6;gpt-4o@openai", ModelName: "gpt-4o"})
	if app.prefs.CurrentChatModel != "" {
		t.Fatalf("expected unchanged selection to not be re-saved, got %q", app.prefs.CurrentChatModel)
	}
}

func TestApplyCycleRestoresSelection(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	bot := bots.New("gpt-4o", "openai")

	app.applyCycle(orchestrator.CycleResult{
		Bots:      []bots.Bot{bot},
		Selection: bots.Selection{Bot: bot, Found: true},
		Restored:  true,
	})

	if app.currentBotID != bot.ID {
		t.Fatalf("expected restored bot %q, got %q", bot.ID, app.currentBotID)
	}
	if got := len(app.modelsModal.options); got != 1 {
		t.Fatalf("expected models modal refreshed, got %d options", got)
	}

	app.applyCycle(orchestrator.CycleResult{Restored: true})
	if app.currentBotID != "" {
		t.Fatalf("expected selection cleared when nothing matched, got %q", app.currentBotID)
	}
}

func TestApplyCycleLeavesSelectionWhenNotRestored(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.currentBotID = "6;gpt-4o@openai"

	app.applyCycle(orchestrator.CycleResult{Bots: []bots.Bot{bots.New("llama3.1", "ollama")}})
	if app.currentBotID != "6;gpt-4o@openai" {
		t.Fatalf("expected selection untouched for a non-restoring cycle, got %q", app.currentBotID)
	}
}

func TestInputHistoryNavigation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.inputHistory = []string{"first prompt", "second prompt"}
	app.resetInputHistoryNavigation()
	app.chat.SetInputValue("draft in progress")

	app.navigateInputHistory(-1)
	if got := app.chat.GetInputValue(); got != "second prompt" {
		t.Fatalf("expected newest history entry, got %q", got)
	}
	app.navigateInputHistory(-1)
	if got := app.chat.GetInputValue(); got != "first prompt" {
		t.Fatalf("expected oldest history entry, got %q", got)
	}

	app.navigateInputHistory(-1)
	if got := app.chat.GetInputValue(); got != "first prompt" {
		t.Fatalf("expected navigation to stop at the oldest entry, got %q", got)
	}

	app.navigateInputHistory(1)
	if got := app.chat.GetInputValue(); got != "second prompt" {
		t.Fatalf("expected forward navigation, got %q", got)
	}
	app.navigateInputHistory(1)
	if got := app.chat.GetInputValue(); got != "draft in progress" {
		t.Fatalf("expected draft restored past the newest entry, got %q", got)
	}
}

func TestStreamSettlesIntoOriginatingChat(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.currentBotID = "6;gpt-4o@openai"

	app.newChat()
	asking := app.store.Current()
	if asking == nil {
		t.Fatal("expected a current chat after creation")
	}
	app.chat.Append(chats.NewMessage(chats.SenderUser, "what is the capital of france"))
	app.persistMessages(asking.ID, app.chat.Messages())
	app.chat.StreamToken("Par")

	// The user moves on while the completion is still streaming.
	app.newChat()

	app.Update(StreamTokenMsg{Token: "is", ChatID: asking.ID})
	if got := app.chat.Messages(); len(got) != 0 {
		t.Fatalf("expected no tokens rendered into the new chat, got %d messages", len(got))
	}

	app.Update(StreamDoneMsg{Text: "Paris.", ChatID: asking.ID})

	original, err := app.store.Get(asking.ID)
	if err != nil {
		t.Fatalf("load originating chat: %v", err)
	}
	if len(original.Messages) != 2 {
		t.Fatalf("expected question and reply in the originating chat, got %d messages", len(original.Messages))
	}
	if original.Messages[1].From != chats.SenderAssistant || original.Messages[1].Text != "Paris." {
		t.Fatalf("unexpected settled reply: %+v", original.Messages[1])
	}

	current := app.store.Current()
	if current == nil || current.ID == asking.ID {
		t.Fatal("expected a different chat to be current")
	}
	if len(current.Messages) != 0 {
		t.Fatalf("reply leaked into the current chat: %+v", current.Messages)
	}
}

func TestStreamSettlesIntoDisplayedChat(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.currentBotID = "6;gpt-4o@openai"

	app.newChat()
	asking := app.store.Current()
	app.chat.Append(chats.NewMessage(chats.SenderUser, "hi"))
	app.persistMessages(asking.ID, app.chat.Messages())
	app.chat.StreamToken("he")

	app.Update(StreamDoneMsg{Text: "hello", ChatID: asking.ID})

	got, err := app.store.Get(asking.ID)
	if err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Text != "hello" {
		t.Fatalf("expected finished reply persisted, got %+v", got.Messages)
	}
}

func TestNewChatInheritsCurrentBot(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.currentBotID = "6;gpt-4o@openai"

	app.newChat()
	current := app.store.Current()
	if current == nil {
		t.Fatal("expected a current chat after creation")
	}
	if current.BotID != "6;gpt-4o@openai" {
		t.Fatalf("expected new chat to carry the active bot, got %q", current.BotID)
	}
	if !strings.Contains(app.statusbar.View(), "[CHATS: 1]") {
		t.Fatalf("expected chat count updated, got %q", app.statusbar.View())
	}
}
