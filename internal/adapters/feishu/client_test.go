package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alekspetrov/dobby/internal/comms"
	"github.com/alekspetrov/dobby/internal/dispatch"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

// The client is both sinks the dispatcher writes to.
var (
	_ comms.ReplySink            = (*Client)(nil)
	_ dispatch.NativeTaskCreator = (*Client)(nil)
)

// fakePlatform serves the token endpoint and delegates everything else.
type fakePlatform struct {
	t          *testing.T
	tokenCalls atomic.Int32
	handler    http.HandlerFunc
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/auth/v3/tenant_access_token/internal" {
		f.tokenCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["app_id"] != "cli_test" || body["app_secret"] != "secret" {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 10003, "msg": "invalid app"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "t-123", "expire": 7200})
		return
	}
	if got := r.Header.Get("Authorization"); got != "Bearer t-123" {
		f.t.Errorf("%s: Authorization = %q", r.URL.Path, got)
	}
	f.handler(w, r)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakePlatform) {
	t.Helper()
	fp := &fakePlatform{t: t, handler: h}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, AppID: "cli_test", AppSecret: "secret"}), fp
}

func writeOK(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success", "data": data})
}

func TestReplyAndUpdate(t *testing.T) {
	var updated string
	c, fp := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/im/v1/messages/om_in/reply":
			if body["msg_type"] != "text" || body["content"] != `{"text":"✅ 任务已建"}` {
				t.Errorf("reply body = %v", body)
			}
			writeOK(w, map[string]string{"message_id": "om_out"})
		case r.Method == http.MethodPut && r.URL.Path == "/im/v1/messages/om_out":
			updated = body["content"]
			writeOK(w, map[string]string{"message_id": "om_out"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	handle, err := c.Reply(ctx, "om_in", "✅ 任务已建")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if handle != "om_out" {
		t.Errorf("handle = %q", handle)
	}
	if err := c.Update(ctx, handle, "done (原生任务✅)"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != `{"text":"done (原生任务✅)"}` {
		t.Errorf("updated content = %s", updated)
	}
	if n := fp.tokenCalls.Load(); n != 1 {
		t.Errorf("token fetched %d times, want cached after first", n)
	}
}

func TestTokenRefreshBeforeExpiry(t *testing.T) {
	c, fp := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"message_id": "m"})
	})
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	ctx := context.Background()
	_, _ = c.Reply(ctx, "a", "x")
	clock = clock.Add(7200*time.Second - 30*time.Second)
	_, _ = c.Reply(ctx, "a", "x")

	if n := fp.tokenCalls.Load(); n != 2 {
		t.Errorf("token calls = %d, want refresh inside the last minute", n)
	}
}

func TestAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 230002, "msg": "bot not in chat"})
	})

	_, err := c.Reply(context.Background(), "om", "x")
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("error = %v, want ErrAPI", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 230002 {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestBadCredentials(t *testing.T) {
	fp := &fakePlatform{t: t, handler: func(http.ResponseWriter, *http.Request) {}}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, AppID: "nope", AppSecret: "x"})
	if _, err := c.Reply(context.Background(), "om", "x"); !errors.Is(err, ErrAPI) {
		t.Errorf("error = %v, want ErrAPI", err)
	}
}

func TestBotID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot/v3/info" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "ok",
			"bot": map[string]string{"open_id": "ou_bot", "app_name": "Dobby"},
		})
	})

	id, err := c.BotID(context.Background())
	if err != nil || id != "ou_bot" {
		t.Errorf("BotID = %q, %v", id, err)
	}
}

func TestCreateNativeTask(t *testing.T) {
	due := int64(1767110400000)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/task/v2/tasks" || r.URL.Query().Get("user_id_type") != "open_id" {
			t.Errorf("unexpected %s", r.URL)
		}
		raw, _ := io.ReadAll(r.Body)
		var got createTaskRequest
		_ = json.Unmarshal(raw, &got)
		want := createTaskRequest{
			Summary: "交周报",
			Members: []taskMember{{ID: "ou_1", Type: "user", Role: "assignee"}},
			Due:     &taskDue{Timestamp: "1767110400000"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("request mismatch (-want +got):\n%s", diff)
		}
		writeOK(w, map[string]any{"task": map[string]string{"guid": "g-1"}})
	})

	guid, err := c.CreateNativeTask(context.Background(), comms.NativeTask{Summary: "交周报", Owners: []string{"ou_1"}, Due: &due})
	if err != nil || guid != "g-1" {
		t.Errorf("CreateNativeTask = %q, %v", guid, err)
	}
}

func TestBitableStore(t *testing.T) {
	var searchCalls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		const base = "/bitable/v1/apps/app1/tables/tbl1/records"
		switch {
		case r.Method == http.MethodPost && r.URL.Path == base:
			var body struct {
				Fields taskstore.Fields `json:"fields"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Fields[taskstore.FieldDescription] != "写周报" {
				t.Errorf("create fields = %v", body.Fields)
			}
			writeOK(w, map[string]any{"record": map[string]string{"record_id": "rec_new"}})

		case r.Method == http.MethodPost && r.URL.Path == base+"/search":
			searchCalls++
			if r.URL.Query().Get("page_size") != "500" {
				t.Errorf("page_size = %s", r.URL.Query().Get("page_size"))
			}
			if r.URL.Query().Get("page_token") == "" {
				writeOK(w, map[string]any{
					"items":      []map[string]any{{"record_id": "r1", "fields": map[string]any{"任务描述": "a"}}},
					"has_more":   true,
					"page_token": "p2",
				})
				return
			}
			writeOK(w, map[string]any{
				"items":    []map[string]any{{"record_id": "r2", "fields": map[string]any{"任务描述": "b"}}},
				"has_more": false,
			})

		case r.Method == http.MethodPut && r.URL.Path == base+"/r1":
			writeOK(w, map[string]any{"record": map[string]string{"record_id": "r1"}})

		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	store := NewBitableStore(c, &BitableConfig{AppToken: "app1", TableID: "tbl1"})
	ctx := context.Background()

	id, err := store.Create(ctx, taskstore.Fields{taskstore.FieldDescription: "写周报"})
	if err != nil || id != "rec_new" {
		t.Fatalf("Create = %q, %v", id, err)
	}

	records, err := store.Search(ctx)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if searchCalls != 2 || len(records) != 2 || records[1].ID != "r2" {
		t.Errorf("search calls = %d, records = %+v", searchCalls, records)
	}

	if err := store.Update(ctx, "r1", taskstore.Fields{taskstore.FieldStatus: "已完成"}); err != nil {
		t.Errorf("Update: %v", err)
	}
}
