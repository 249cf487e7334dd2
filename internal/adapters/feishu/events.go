package feishu

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alekspetrov/dobby/internal/comms"
)

// EventKind classifies a decoded callback.
type EventKind int

const (
	// EventIgnored covers callbacks the bot does not act on.
	EventIgnored EventKind = iota
	EventChallenge
	EventMessage
)

const eventMessageReceive = "im.message.receive_v1"

// Event is a decoded callback body.
type Event struct {
	Kind      EventKind
	Challenge string
	// Token is the verification token the platform sent.
	Token   string
	Message *comms.IncomingMessage
}

type callbackBody struct {
	Schema    string `json:"schema"`
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Encrypt   string `json:"encrypt"`
	Header    struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Token     string `json:"token"`
	} `json:"header"`
	Event json.RawMessage `json:"event"`
}

type messageEvent struct {
	Sender struct {
		SenderID struct {
			OpenID string `json:"open_id"`
		} `json:"sender_id"`
		SenderType string `json:"sender_type"`
	} `json:"sender"`
	Message struct {
		MessageID   string `json:"message_id"`
		ChatID      string `json:"chat_id"`
		ChatType    string `json:"chat_type"`
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
		CreateTime  string `json:"create_time"`
		Mentions    []struct {
			Key string `json:"key"`
			ID  struct {
				OpenID string `json:"open_id"`
			} `json:"id"`
			Name string `json:"name"`
		} `json:"mentions"`
	} `json:"message"`
}

// ErrEncrypted is returned for encrypted callbacks, which need an
// encrypt key the bot does not configure.
var ErrEncrypted = errors.New("encrypted event callbacks are not supported")

// DecodeEvent decodes an event callback body. Only text messages from
// users become EventMessage; everything else is EventIgnored.
func DecodeEvent(body []byte) (*Event, error) {
	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}
	if cb.Encrypt != "" {
		return nil, ErrEncrypted
	}

	if cb.Type == "url_verification" {
		return &Event{Kind: EventChallenge, Challenge: cb.Challenge, Token: cb.Token}, nil
	}

	ev := &Event{Kind: EventIgnored, Token: cb.Header.Token}
	if ev.Token == "" {
		ev.Token = cb.Token
	}
	if cb.Header.EventType != eventMessageReceive || len(cb.Event) == 0 {
		return ev, nil
	}

	var me messageEvent
	if err := json.Unmarshal(cb.Event, &me); err != nil {
		return nil, fmt.Errorf("decode message event: %w", err)
	}
	if me.Message.MessageType != "text" || me.Sender.SenderType == "app" {
		return ev, nil
	}

	msg := &comms.IncomingMessage{
		ID:         me.Message.MessageID,
		ChatID:     me.Message.ChatID,
		ChatKind:   comms.ParseChatKind(me.Message.ChatType),
		SenderID:   me.Sender.SenderID.OpenID,
		Text:       extractText(me.Message.Content),
		ReceivedAt: parseCreateTime(me.Message.CreateTime),
	}
	for _, m := range me.Message.Mentions {
		msg.Mentions = append(msg.Mentions, comms.Mention{Key: m.Key, Name: m.Name, ID: m.ID.OpenID})
	}

	ev.Kind = EventMessage
	ev.Message = msg
	return ev, nil
}

func extractText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	var v struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return content
	}
	return v.Text
}

func parseCreateTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
