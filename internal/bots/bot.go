// Package bots defines the model descriptors exposed by providers and the
// composite string identity used to persist a model selection across restarts.
package bots

import (
	"fmt"
	"strconv"
	"strings"
)

// Bot is a selectable chat model exposed by a provider. Only its ID string is
// ever persisted; the rest is rebuilt on every fetch cycle.
type Bot struct {
	// ID is the composite identity: <name-len>;<model-name>@<provider>.
	ID string
	// Name is the raw model identifier as reported by the provider.
	Name string
	// Provider is the owning provider id, tagged at fetch time.
	Provider string
	// AvatarURL is optional display metadata.
	AvatarURL string
}

// New builds a Bot for a model name owned by a provider.
func New(name, provider string) Bot {
	return Bot{
		ID:       FormatID(name, provider),
		Name:     name,
		Provider: provider,
	}
}

// FormatID encodes a model name and provider into the composite id. The name
// length prefix disambiguates model names that themselves contain '@'.
func FormatID(name, provider string) string {
	return fmt.Sprintf("%d;%s@%s", len(name), name, provider)
}

// ParseID decodes a composite id into (model name, provider). Malformed input
// yields empty strings rather than an error; callers treat that as "no match"
// and fall back to default selection.
func ParseID(id string) (name, provider string) {
	lengthStr, rest, ok := strings.Cut(id, ";")
	if !ok {
		return "", ""
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil || length < 0 || len(rest) < length+1 {
		return "", ""
	}
	if rest[length] != '@' {
		return "", ""
	}
	return rest[:length], rest[length+1:]
}
