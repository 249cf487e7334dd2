// Package comms defines the platform-agnostic message contracts shared by
// the transports and the dispatcher.
package comms

import (
	"context"
	"time"
)

// ChatKind distinguishes one-to-one chats from group chats.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// ParseChatKind maps a platform chat type to a ChatKind. Feishu reports
// "p2p" for direct chats; anything that is not a group is treated as direct.
func ParseChatKind(s string) ChatKind {
	switch s {
	case "group", "topic_group":
		return ChatGroup
	default:
		return ChatDirect
	}
}

// Mention is one @-mention inside a message. Key is the placeholder that
// appears in the raw text (e.g. "@_user_1"), ID the platform user id.
type Mention struct {
	Key  string
	Name string
	ID   string
}

// IncomingMessage is the platform-agnostic representation of an inbound
// chat message. It is immutable once received.
type IncomingMessage struct {
	ID         string
	ChatID     string
	ChatKind   ChatKind
	SenderID   string
	SenderName string // display name when the transport knows it
	Text       string
	Mentions   []Mention
	ReceivedAt time.Time
}

// ReplySink delivers the dispatcher's user-facing text back to the chat.
type ReplySink interface {
	// Reply answers the message identified by replyTo and returns a handle
	// for later updates.
	Reply(ctx context.Context, replyTo, text string) (handle string, err error)

	// Update replaces the text of a message previously returned by Reply.
	Update(ctx context.Context, handle, text string) error
}

// NativeTask is the secondary copy of a task written to the chat
// platform's own task list.
type NativeTask struct {
	Summary string
	Owners  []string
	// Due is epoch milliseconds; nil for no due date.
	Due *int64
}
