// Package mention strips @-mention placeholders from chat text and maps the
// remaining mentions to user ids, leaving the bot itself out.
package mention

import (
	"sort"
	"strings"

	"github.com/alekspetrov/dobby/internal/comms"
)

// Entry is a resolved, non-bot mention.
type Entry struct {
	Key  string
	Name string
	ID   string
}

// Resolved is the output of Resolve.
type Resolved struct {
	// CleanText is the raw text with every mention placeholder removed.
	CleanText string
	// Entries holds the non-bot mentions in message order.
	Entries Mentions
	// AddressesBot is true when one of the mentions is the bot.
	AddressesBot bool
}

// Resolver identifies the bot among mentions by id or by alias name.
type Resolver struct {
	aliases map[string]struct{}
}

// NewResolver creates a Resolver for the given bot aliases.
func NewResolver(aliases []string) *Resolver {
	set := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	return &Resolver{aliases: set}
}

// IsAlias reports whether name is one of the bot's aliases.
func (r *Resolver) IsAlias(name string) bool {
	_, ok := r.aliases[strings.TrimSpace(name)]
	return ok
}

// IsBot reports whether m refers to the bot. botID may be empty while the
// bot's own id is still unknown, in which case only the alias matches.
func (r *Resolver) IsBot(m comms.Mention, botID string) bool {
	if botID != "" && m.ID == botID {
		return true
	}
	return r.IsAlias(m.Name)
}

// Resolve removes mention placeholders from text and returns the non-bot
// mentions. It is a pure function of its inputs.
func (r *Resolver) Resolve(text string, mentions []comms.Mention, botID string) Resolved {
	out := Resolved{CleanText: text}

	// Longest keys first so "@_user_1" never eats the prefix of "@_user_10".
	keys := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if m.Key != "" {
			keys = append(keys, m.Key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		out.CleanText = strings.ReplaceAll(out.CleanText, k, "")
	}

	for _, m := range mentions {
		if r.IsBot(m, botID) {
			out.AddressesBot = true
			continue
		}
		out.Entries = append(out.Entries, Entry{Key: m.Key, Name: m.Name, ID: m.ID})
	}

	out.CleanText = strings.Join(strings.Fields(out.CleanText), " ")
	return out
}

// Mentions is a convenience view over resolved entries.
type Mentions []Entry

// Names returns the display names in order.
func (ms Mentions) Names() []string {
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}
