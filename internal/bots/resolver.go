package bots

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Selection is the outcome of restoring a persisted model selection against
// the live bot list.
type Selection struct {
	Bot   Bot
	Found bool
	// Rewritten reports that the canonical resolved id differs from what was
	// persisted; callers should re-save Bot.ID so future runs match exactly.
	Rewritten bool
}

// Resolver reconciles the persisted "last selected model" string against the
// combined bot list after a full fetch cycle. It runs at most once per cycle;
// Reset re-arms it when providers are reconfigured.
type Resolver struct {
	restored bool
}

// Restored reports whether resolution already ran for the current cycle.
func (r *Resolver) Restored() bool { return r.restored }

// Reset re-arms the resolver for the next fetch cycle.
func (r *Resolver) Reset() { r.restored = false }

// Resolve picks the best matching bot for the saved id. The second return
// value reports whether resolution actually ran; once it has, further calls
// are no-ops until Reset.
func (r *Resolver) Resolve(saved string, all []Bot) (Selection, bool) {
	if r.restored {
		return Selection{}, false
	}
	r.restored = true

	if len(all) == 0 {
		return Selection{}, true
	}

	saved = strings.TrimSpace(saved)
	if saved == "" {
		log.Info().Str("model", all[0].Name).Msg("no saved model, selecting first available")
		// Persisted like the total-miss fallback below, so the next run
		// restores the same pick instead of re-deciding.
		return Selection{Bot: all[0], Found: true, Rewritten: true}, true
	}

	for _, bot := range all {
		if bot.ID == saved {
			return Selection{Bot: bot, Found: true}, true
		}
	}

	savedName, savedProvider := ParseID(saved)
	for _, bot := range all {
		if bot.Provider != savedProvider {
			continue
		}
		// Some providers namespace model names with a "models/" prefix; match
		// across that inconsistency but no further.
		if bot.Name == savedName ||
			bot.Name == "models/"+savedName ||
			savedName == "models/"+bot.Name {
			log.Info().Str("saved", saved).Str("resolved", bot.ID).Msg("fuzzy-matched saved model")
			return Selection{Bot: bot, Found: true, Rewritten: bot.ID != saved}, true
		}
	}

	log.Warn().Str("saved", saved).Msg("saved model not found, selecting first available")
	return Selection{Bot: all[0], Found: true, Rewritten: true}, true
}
