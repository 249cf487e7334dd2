package entity

import (
	"strings"

	"github.com/alekspetrov/dobby/internal/mention"
)

// ResolveOwners maps owner names to user ids using the message's mentions.
// A name resolves on an exact display-name or placeholder-key match first,
// then on substring containment in either direction. The bot is never an
// owner, and an empty result falls back to the sender.
func ResolveOwners(names []string, mentions []mention.Entry, botID, senderID string) []string {
	seen := make(map[string]struct{}, len(names))
	var owners []string

	add := func(id string) {
		if id == "" || id == botID {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		owners = append(owners, id)
	}

	for _, raw := range names {
		name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
		if name == "" {
			continue
		}
		if id, ok := matchOwner(name, mentions); ok {
			add(id)
		}
	}

	if len(owners) == 0 && senderID != "" && senderID != botID {
		owners = []string{senderID}
	}
	return owners
}

func matchOwner(name string, mentions []mention.Entry) (string, bool) {
	for _, m := range mentions {
		if m.ID == "" {
			continue
		}
		if m.Name == name || m.Key == name || m.Key == "@"+name {
			return m.ID, true
		}
	}
	for _, m := range mentions {
		if m.ID == "" || m.Name == "" {
			continue
		}
		if strings.Contains(m.Name, name) || strings.Contains(name, m.Name) {
			return m.ID, true
		}
	}
	return "", false
}
