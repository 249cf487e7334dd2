package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alekspetrov/dobby/internal/comms"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/google/uuid"
)

// FrameType names a console frame.
type FrameType string

const (
	// Inbound.
	FrameMessage FrameType = "message"
	FramePing    FrameType = "ping"

	// Outbound.
	FramePong   FrameType = "pong"
	FrameAck    FrameType = "ack"
	FrameReply  FrameType = "reply"
	FrameUpdate FrameType = "update"
	FrameError  FrameType = "error"
)

// Frame is the envelope of every console websocket message.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessagePayload is a chat message typed into the console.
type MessagePayload struct {
	ID         string          `json:"id,omitempty"`
	Text       string          `json:"text"`
	ChatKind   string          `json:"chat_kind,omitempty"`
	SenderID   string          `json:"sender_id,omitempty"`
	SenderName string          `json:"sender_name,omitempty"`
	Mentions   []comms.Mention `json:"mentions,omitempty"`
}

// AckPayload tells the console whether a message was accepted.
type AckPayload struct {
	MessageID string `json:"message_id"`
	Accepted  bool   `json:"accepted"`
}

// ReplyPayload carries a reply or an update of an earlier reply.
type ReplyPayload struct {
	Handle  string `json:"handle"`
	ReplyTo string `json:"reply_to,omitempty"`
	Text    string `json:"text"`
}

// ErrorPayload reports a frame the gateway could not handle.
type ErrorPayload struct {
	Error string `json:"error"`
}

func newFrame(t FrameType, payload any) Frame {
	f := Frame{Type: t}
	if payload != nil {
		f.Payload, _ = json.Marshal(payload)
	}
	return f
}

// FrameHandler handles one inbound frame payload.
type FrameHandler func(ctx context.Context, session *Session, payload json.RawMessage)

// Router routes console frames to registered handlers.
type Router struct {
	handlers map[FrameType][]FrameHandler
	mu       sync.RWMutex
}

// NewRouter creates a router with the ping handler registered.
func NewRouter() *Router {
	r := &Router{
		handlers: make(map[FrameType][]FrameHandler),
	}
	r.RegisterMessageHandler(FramePing, r.handlePing)
	return r
}

// RegisterMessageHandler registers a handler for a frame type.
func (r *Router) RegisterMessageHandler(t FrameType, handler FrameHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], handler)
}

// HandleMessage decodes a raw frame and runs its handlers. Undecodable or
// unroutable frames are answered with an error frame.
func (r *Router) HandleMessage(ctx context.Context, session *Session, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		logging.WithComponent("gateway").Debug("Invalid console frame", slog.Any("error", err))
		_ = session.Send(newFrame(FrameError, ErrorPayload{Error: "invalid frame"}))
		return
	}

	r.mu.RLock()
	handlers, ok := r.handlers[frame.Type]
	r.mu.RUnlock()

	if !ok {
		_ = session.Send(newFrame(FrameError, ErrorPayload{Error: "unknown frame type: " + string(frame.Type)}))
		return
	}

	for _, handler := range handlers {
		handler(ctx, session, frame.Payload)
	}
}

func (r *Router) handlePing(_ context.Context, session *Session, payload json.RawMessage) {
	session.UpdatePing()
	_ = session.Send(Frame{Type: FramePong, Payload: payload})
}

// handleConsoleMessage turns a console message frame into an incoming
// message and hands it to the dispatcher with the session as sink.
func (s *Server) handleConsoleMessage(ctx context.Context, session *Session, payload json.RawMessage) {
	var p MessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		_ = session.Send(newFrame(FrameError, ErrorPayload{Error: "invalid message payload"}))
		return
	}

	msg := &comms.IncomingMessage{
		ID:         p.ID,
		ChatID:     "console:" + session.ID,
		ChatKind:   comms.ChatDirect,
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Text:       p.Text,
		Mentions:   p.Mentions,
		ReceivedAt: time.Now(),
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if strings.TrimSpace(p.ChatKind) != "" {
		msg.ChatKind = comms.ParseChatKind(p.ChatKind)
	}
	if msg.SenderID == "" {
		msg.SenderID = "console:" + session.ID
	}

	accepted := s.dispatcher.HandleEvent(ctx, msg, session)
	_ = session.Send(newFrame(FrameAck, AckPayload{MessageID: msg.ID, Accepted: accepted}))
}
