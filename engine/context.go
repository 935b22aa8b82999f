package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/memory"
)

// ContextBundle is everything assembled for one reasoning call: the user's
// durable preferences and facts, semantically similar past episodes, and the
// thread history so far.
type ContextBundle struct {
	Preferences map[string]string
	Facts       []string
	Episodes    []*memory.Episode
	History     []core.Message
}

// Assembler gathers memory across the three tiers before each turn. Reads
// fail soft: a tier that errors contributes nothing to the bundle instead of
// aborting the turn.
type Assembler struct {
	facts    memory.FactStore
	episodes memory.EpisodeStore
	log      memory.ConversationLog

	factLimit int
	episodeK  int
}

// NewAssembler creates an assembler over the memory tiers.
func NewAssembler(facts memory.FactStore, episodes memory.EpisodeStore, log memory.ConversationLog, factLimit, episodeK int) *Assembler {
	if factLimit <= 0 {
		factLimit = 10
	}
	if episodeK <= 0 {
		episodeK = 3
	}
	return &Assembler{facts: facts, episodes: episodes, log: log, factLimit: factLimit, episodeK: episodeK}
}

// Build assembles the context bundle for a turn. query drives episode
// retrieval; it is the user's incoming message.
func (a *Assembler) Build(ctx context.Context, userID, threadID, query string) *ContextBundle {
	bundle := &ContextBundle{Preferences: map[string]string{}}

	prefs, err := a.facts.Preferences(ctx, userID)
	if err != nil {
		log.Printf("[CONTEXT] Preference load failed, continuing without: %v", err)
	} else {
		bundle.Preferences = prefs
	}

	userFacts, err := a.facts.Facts(ctx, userID, a.factLimit)
	if err != nil {
		log.Printf("[CONTEXT] Fact load failed, continuing without: %v", err)
	} else {
		for _, f := range userFacts {
			bundle.Facts = append(bundle.Facts, f.Content)
		}
	}

	episodes, err := a.episodes.FindSimilar(ctx, userID, query, a.episodeK)
	if err != nil {
		log.Printf("[CONTEXT] Episode retrieval failed, continuing without: %v", err)
	} else {
		bundle.Episodes = episodes
	}

	history, err := a.log.History(ctx, threadID)
	if err != nil {
		log.Printf("[CONTEXT] History load failed, continuing without: %v", err)
	} else {
		bundle.History = history
	}

	return bundle
}

// Render formats the bundle into a system prompt, starting from base.
// Empty sections are omitted.
func (b *ContextBundle) Render(base string) string {
	var sb strings.Builder
	sb.WriteString(base)

	if len(b.Preferences) > 0 {
		sb.WriteString("\n\n## User preferences\n")
		for _, key := range sortedKeys(b.Preferences) {
			fmt.Fprintf(&sb, "- %s: %s\n", key, b.Preferences[key])
		}
	}

	if len(b.Facts) > 0 {
		sb.WriteString("\n## What you know about this user\n")
		for _, fact := range b.Facts {
			fmt.Fprintf(&sb, "- %s\n", fact)
		}
	}

	if len(b.Episodes) > 0 {
		sb.WriteString("\n## Similar past episodes\n")
		sb.WriteString("You have handled similar requests before. Use these as guidance:\n")
		for _, ep := range b.Episodes {
			fmt.Fprintf(&sb, "- %s\n", ep.Format(200))
		}
	}

	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
