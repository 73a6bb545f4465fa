// Package chats is the durable chat session store, one JSON file per session.
package chats

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the placeholder a new chat carries until the first user
// message supplies a real one.
const DefaultTitle = "New Chat"

const titleMaxRunes = 50

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one chat message. IsWriting marks an assistant message still
// streaming; it is never persisted and resets to false on load.
type Message struct {
	ID        string `json:"id"`
	From      Sender `json:"from"`
	Text      string `json:"text"`
	IsWriting bool   `json:"-"`
}

func NewMessage(from Sender, text string) Message {
	return Message{ID: uuid.NewString(), From: from, Text: text}
}

// Chat is one persisted session.
type Chat struct {
	ID         uint64    `json:"id"`
	Title      string    `json:"title"`
	BotID      string    `json:"bot_id,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// deriveTitle builds a chat title from the first user message, truncated to
// titleMaxRunes.
func deriveTitle(messages []Message) (string, bool) {
	for _, m := range messages {
		if m.From != SenderUser || m.Text == "" {
			continue
		}
		runes := []rune(m.Text)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]), true
		}
		return m.Text, true
	}
	return "", false
}
