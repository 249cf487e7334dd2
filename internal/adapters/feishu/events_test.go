package feishu

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/alekspetrov/dobby/internal/comms"
)

func TestDecodeChallenge(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"challenge":"abc","token":"vt","type":"url_verification"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventChallenge || ev.Challenge != "abc" || ev.Token != "vt" {
		t.Errorf("event = %+v", ev)
	}
}

const groupMessage = `{
  "schema": "2.0",
  "header": {"event_id": "e1", "event_type": "im.message.receive_v1", "token": "vt", "create_time": "1700000000000"},
  "event": {
    "sender": {"sender_id": {"open_id": "ou_sender"}, "sender_type": "user"},
    "message": {
      "message_id": "om_1",
      "chat_id": "oc_1",
      "chat_type": "group",
      "message_type": "text",
      "create_time": "1700000000000",
      "content": "{\"text\":\"@_user_1 修复登录 @_user_2\"}",
      "mentions": [
        {"key": "@_user_1", "id": {"open_id": "ou_bot"}, "name": "Dobby"},
        {"key": "@_user_2", "id": {"open_id": "ou_zhang"}, "name": "张三"}
      ]
    }
  }
}`

func TestDecodeMessage(t *testing.T) {
	ev, err := DecodeEvent([]byte(groupMessage))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventMessage || ev.Token != "vt" {
		t.Fatalf("event = %+v", ev)
	}

	want := &comms.IncomingMessage{
		ID:       "om_1",
		ChatID:   "oc_1",
		ChatKind: comms.ChatGroup,
		SenderID: "ou_sender",
		Text:     "@_user_1 修复登录 @_user_2",
		Mentions: []comms.Mention{
			{Key: "@_user_1", Name: "Dobby", ID: "ou_bot"},
			{Key: "@_user_2", Name: "张三", ID: "ou_zhang"},
		},
	}
	if diff := cmp.Diff(want, ev.Message, cmpopts.IgnoreFields(comms.IncomingMessage{}, "ReceivedAt")); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
	if ev.Message.ReceivedAt.UnixMilli() != 1700000000000 {
		t.Errorf("ReceivedAt = %v", ev.Message.ReceivedAt)
	}
}

func TestDecodeIgnored(t *testing.T) {
	tests := map[string]string{
		"image message": `{"schema":"2.0","header":{"event_type":"im.message.receive_v1"},"event":{"sender":{"sender_type":"user"},"message":{"message_type":"image","content":"{}"}}}`,
		"bot sender":    `{"schema":"2.0","header":{"event_type":"im.message.receive_v1"},"event":{"sender":{"sender_type":"app"},"message":{"message_type":"text","content":"{\"text\":\"hi\"}"}}}`,
		"other event":   `{"schema":"2.0","header":{"event_type":"im.chat.member.bot.added_v1"},"event":{}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(body))
			if err != nil {
				t.Fatal(err)
			}
			if ev.Kind != EventIgnored || ev.Message != nil {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{"encrypt":"xyz"}`)); !errors.Is(err, ErrEncrypted) {
		t.Errorf("encrypted error = %v", err)
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid body")
	}
}

func TestExtractText(t *testing.T) {
	if got := extractText(`{"text":"hi"}`); got != "hi" {
		t.Errorf("extractText = %q", got)
	}
	if got := extractText("plain"); got != "plain" {
		t.Errorf("extractText plain = %q", got)
	}
}
