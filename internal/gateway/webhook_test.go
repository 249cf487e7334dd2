package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recordingSink struct {
	mu      sync.Mutex
	replies []string
}

func (s *recordingSink) Reply(_ context.Context, replyTo, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replyTo+":"+text)
	return "h1", nil
}

func (s *recordingSink) Update(context.Context, string, string) error { return nil }

const textEvent = `{
  "schema": "2.0",
  "header": {"event_id": "e1", "event_type": "im.message.receive_v1", "token": "vt"},
  "event": {
    "sender": {"sender_id": {"open_id": "ou_sender"}, "sender_type": "user"},
    "message": {
      "message_id": "om_1",
      "chat_id": "oc_1",
      "chat_type": "p2p",
      "message_type": "text",
      "create_time": "1700000000000",
      "content": "{\"text\":\"我的任务\"}"
    }
  }
}`

func postEvent(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/event", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookChallenge(t *testing.T) {
	s := NewServer(&Config{}, &fakeDispatcher{}, WithVerificationToken("vt"))

	w := postEvent(t, s, `{"type":"url_verification","challenge":"xyz","token":"vt"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["challenge"] != "xyz" {
		t.Errorf("challenge = %q", resp["challenge"])
	}
}

func TestWebhookRejectsWrongToken(t *testing.T) {
	d := &fakeDispatcher{}
	s := NewServer(&Config{}, d, WithVerificationToken("other"), WithReplySink(&recordingSink{}))

	w := postEvent(t, s, textEvent)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if got := len(d.received()); got != 0 {
		t.Errorf("dispatcher got %d messages", got)
	}
}

func TestWebhookDispatchesMessage(t *testing.T) {
	d := &fakeDispatcher{reply: "ok"}
	sink := &recordingSink{}
	s := NewServer(&Config{}, d, WithVerificationToken("vt"), WithReplySink(sink))

	w := postEvent(t, s, textEvent)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	msgs := d.received()
	if len(msgs) != 1 {
		t.Fatalf("dispatcher got %d messages", len(msgs))
	}
	if msgs[0].ID != "om_1" || msgs[0].Text != "我的任务" || msgs[0].SenderID != "ou_sender" {
		t.Errorf("message = %+v", msgs[0])
	}
	if len(sink.replies) != 1 || sink.replies[0] != "om_1:ok" {
		t.Errorf("replies = %v", sink.replies)
	}

	// A redelivery is still acknowledged.
	if w := postEvent(t, s, textEvent); w.Code != http.StatusOK {
		t.Errorf("redelivery status = %d", w.Code)
	}
	if len(d.received()) != 1 {
		t.Error("redelivery reached the dispatcher twice")
	}
}

func TestWebhookBadRequests(t *testing.T) {
	s := NewServer(&Config{}, &fakeDispatcher{})

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "not json", http.StatusBadRequest},
		{"encrypted", http.MethodPost, `{"encrypt":"abc"}`, http.StatusBadRequest},
		{"ignored event", http.MethodPost, `{"header":{"event_type":"im.chat.updated_v1"}}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/webhook/event", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
