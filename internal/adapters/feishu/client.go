// Package feishu talks to the Feishu (Lark) open platform: tenant token,
// bot identity, message replies, native tasks, Bitable records and
// inbound event callbacks.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alekspetrov/dobby/internal/logging"
)

// DefaultBaseURL is the open platform API root.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// Config holds app credentials and bot identity settings.
type Config struct {
	BaseURL           string   `yaml:"base_url"`
	AppID             string   `yaml:"app_id"`
	AppSecret         string   `yaml:"app_secret"`
	VerificationToken string   `yaml:"verification_token"`
	BotAliases        []string `yaml:"bot_aliases"`
}

// BitableConfig locates the task table.
type BitableConfig struct {
	AppToken string `yaml:"app_token"`
	TableID  string `yaml:"table_id"`
}

// ErrAPI is wrapped by every error the platform reports through a
// non-zero code.
var ErrAPI = errors.New("feishu api error")

// APIError is a non-zero code answer.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu %s: code=%d msg=%s", e.Op, e.Code, e.Msg)
}

func (e *APIError) Unwrap() error { return ErrAPI }

// Client is an open platform client authenticated with a tenant token.
type Client struct {
	baseURL   string
	appID     string
	appSecret string
	http      *http.Client
	log       *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpire time.Time
}

// NewClient creates a client from cfg.
func NewClient(cfg *Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:   base,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		http:      &http.Client{Timeout: 20 * time.Second},
		log:       logging.WithComponent("feishu"),
		now:       time.Now,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call performs an authenticated request and decodes the envelope's data
// into out (when out is non-nil).
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode >= 300 {
			return fmt.Errorf("%s: status=%d body=%s", op, res.StatusCode, truncate(raw))
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if env.Code != 0 {
		return &APIError{Op: op, Code: env.Code, Msg: env.Msg}
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%s: status=%d body=%s", op, res.StatusCode, truncate(raw))
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}

// tenantToken returns a cached token, refreshing it a minute before it
// expires.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpire.Add(-time.Minute)) {
		t := c.token
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	data, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	var r struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("get token: status=%d: %w", res.StatusCode, err)
	}
	if r.Code != 0 {
		return "", &APIError{Op: "get token", Code: r.Code, Msg: r.Msg}
	}

	c.mu.Lock()
	c.token = r.TenantAccessToken
	c.tokenExpire = c.now().Add(time.Duration(r.Expire) * time.Second)
	t := c.token
	c.mu.Unlock()
	return t, nil
}

func truncate(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
