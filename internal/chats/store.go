package chats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"polychat/internal/util"
)

const chatFileSuffix = ".chat.json"

var ErrChatNotFound = errors.New("chat not found")

// nowMillis is a test seam for id generation and timestamps.
var nowMillis = func() uint64 {
	return uint64(time.Now().UnixMilli())
}

// Store holds every chat session in memory, most recently accessed first,
// and mirrors each mutation to its backing file.
type Store struct {
	dir       string
	chats     []*Chat
	currentID uint64
}

// Open scans dir for chat files and loads them all. Corrupt files are logged
// and skipped. The most recently accessed chat becomes current.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chats directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chats directory: %w", err)
	}

	s := &Store{dir: dir}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), chatFileSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read chat file, skipping")
			continue
		}
		var c Chat
		if err := json.Unmarshal(raw, &c); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("corrupt chat file, skipping")
			continue
		}
		s.chats = append(s.chats, &c)
	}

	sort.SliceStable(s.chats, func(i, j int) bool {
		return s.chats[i].AccessedAt.After(s.chats[j].AccessedAt)
	})
	if len(s.chats) > 0 {
		s.currentID = s.chats[0].ID
	}
	log.Debug().Int("chats", len(s.chats)).Str("dir", dir).Msg("chats loaded")
	return s, nil
}

// All returns the sessions, most recently accessed first.
func (s *Store) All() []*Chat { return s.chats }

// Current returns the selected session, or nil when none exists.
func (s *Store) Current() *Chat {
	return s.byID(s.currentID)
}

func (s *Store) byID(id uint64) *Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Get fetches a session by id.
func (s *Store) Get(id uint64) (*Chat, error) {
	if c := s.byID(id); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrChatNotFound, id)
}

// Create starts a new session and makes it current. When botID is empty the
// new chat inherits the bot of the most recently created session.
func (s *Store) Create(botID string) (*Chat, error) {
	if botID == "" && len(s.chats) > 0 {
		latest := s.chats[0]
		for _, c := range s.chats[1:] {
			if c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
		}
		botID = latest.BotID
	}

	id := nowMillis()
	for s.byID(id) != nil {
		id++
	}
	now := time.UnixMilli(int64(id)).UTC()
	c := &Chat{
		ID:         id,
		Title:      DefaultTitle,
		BotID:      botID,
		Messages:   []Message{},
		CreatedAt:  now,
		AccessedAt: now,
	}
	s.chats = append([]*Chat{c}, s.chats...)
	s.currentID = c.ID
	if err := s.save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateMessages replaces a session's message list and persists it. The title
// is derived from the first user message only while it is still the default.
func (s *Store) UpdateMessages(id uint64, messages []Message) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	c.Messages = messages
	if c.Title == DefaultTitle || c.Title == "" {
		if title, ok := deriveTitle(messages); ok {
			c.Title = title
		}
	}
	c.AccessedAt = time.UnixMilli(int64(nowMillis())).UTC()
	return s.save(c)
}

// SetBot changes the model a session talks to.
func (s *Store) SetBot(id uint64, botID string) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	c.BotID = botID
	return s.save(c)
}

// SetCurrent selects a session, bumping its accessed time and resorting.
func (s *Store) SetCurrent(id uint64) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	s.currentID = id
	c.AccessedAt = time.UnixMilli(int64(nowMillis())).UTC()
	sort.SliceStable(s.chats, func(i, j int) bool {
		return s.chats[i].AccessedAt.After(s.chats[j].AccessedAt)
	})
	return s.save(c)
}

// Delete removes a session from memory and disk. When the current session is
// deleted, the first remaining one becomes current.
func (s *Store) Delete(id uint64) error {
	idx := -1
	for i, c := range s.chats {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrChatNotFound, id)
	}
	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete chat file: %w", err)
	}
	if s.currentID == id {
		s.currentID = 0
		if len(s.chats) > 0 {
			s.currentID = s.chats[0].ID
		}
	}
	return nil
}

func (s *Store) path(id uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d%s", id, chatFileSuffix))
}

// save rewrites one session's file. IsWriting carries no JSON tag, so
// streaming progress never reaches disk.
func (s *Store) save(c *Chat) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat %d: %w", c.ID, err)
	}
	if err := util.AtomicWriteFile(s.path(c.ID), data, 0o644); err != nil {
		return fmt.Errorf("write chat %d: %w", c.ID, err)
	}
	return nil
}
