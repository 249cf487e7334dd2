package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alekspetrov/dobby/internal/logging"
)

// LLMConfig configures the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	defaultLLMBaseURL = "https://api.deepseek.com"
	defaultLLMModel   = "deepseek-chat"
	defaultLLMTimeout = 30 * time.Second
)

// Candidate is one task offered to the semantic matcher.
type Candidate struct {
	ID     string
	Name   string
	Status string
}

// LLMClient talks to a chat completions API in JSON mode.
type LLMClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewLLMClient creates a client. Missing fields take defaults; an empty API
// key leaves the client disabled.
func NewLLMClient(cfg *LLMConfig) *LLMClient {
	if cfg == nil {
		cfg = &LLMConfig{}
	}
	c := &LLMClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		log:     logging.WithComponent("llm"),
	}
	if c.baseURL == "" {
		c.baseURL = defaultLLMBaseURL
	}
	if c.model == "" {
		c.model = defaultLLMModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// Enabled reports whether an API key is configured.
func (c *LLMClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Classify asks the model for a command. The answer must decode with
// DecodeResult.
func (c *LLMClient) Classify(ctx context.Context, text, user string, now time.Time) (*Result, error) {
	content, err := c.complete(ctx, classifyPrompt(user, now), text, 0.1)
	if err != nil {
		return nil, err
	}
	result, err := DecodeResult(content)
	if err != nil {
		return nil, err
	}
	c.log.Debug("llm classification",
		slog.String("action", string(result.Action)),
		slog.String("text", text),
	)
	return result, nil
}

// Match asks the model which candidate a free-text reference means. An
// empty id with a nil error means the model found no match.
func (c *LLMClient) Match(ctx context.Context, query string, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, cand := range candidates {
		fmt.Fprintf(&sb, "- [ID: %s] %s (Status: %s)\n", cand.ID, cand.Name, cand.Status)
	}
	user := fmt.Sprintf("User query: %q\n\nCandidates:\n%s", query, sb.String())

	content, err := c.complete(ctx, matchPrompt, user, 0)
	if err != nil {
		return "", err
	}

	var parsed struct {
		MatchedID *string `json:"matched_id"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if parsed.MatchedID == nil {
		return "", nil
	}
	return strings.TrimSpace(*parsed.MatchedID), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *LLMClient) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if !c.Enabled() {
		return "", ErrLLMUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrLLMUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrInvalidResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyPrompt(user string, now time.Time) string {
	if user == "" {
		user = "unknown"
	}
	return fmt.Sprintf(`Role: task assistant inside a Feishu group chat.
Now: %s (%s). User: %s.
Task: extract the user's intent and entities as JSON.

Schema:
{
  "action": "create" | "query" | "update_status" | "unknown",
  "params": {
    "task_name": "string, keep URLs and links",
    "quadrant": "urgent-important" | "not_urgent-important" | "urgent-not_important" | "not_urgent-not_important" (Eisenhower matrix, default "not_urgent-important"),
    "due_date": "YYYY-MM-DD or YYYY-MM-DD HH:MM, resolve relative dates against Now",
    "owners": ["display name of each @mentioned assignee"],
    "keyword": "core subject of the task being updated",
    "target_status": "completed" | "in_progress" | "todo",
    "create_native_task": true only when the user asks for a reminder or a Feishu task
  }
}

Rules:
- "query" lists the user's open tasks; it has no params.
- "update_status" is for finished work: done, fixed, closed, merged, deployed, 已完成, 搞定, 修好了, 上线了.
- Answer with the JSON object only.

Examples:
U: "Server down! Fix it!" -> {"action": "create", "params": {"task_name": "Fix server", "quadrant": "urgent-important"}}
U: "Read this https://bit.ly/3x" -> {"action": "create", "params": {"task_name": "Read this https://bit.ly/3x", "quadrant": "not_urgent-important"}}
U: "首页UI优化搞定了" -> {"action": "update_status", "params": {"keyword": "首页UI优化", "target_status": "completed"}}
U: "我的任务" -> {"action": "query", "params": {}}`,
		now.Format("2006-01-02 15:04"), now.Weekday(), user)
}

const matchPrompt = `You match a user's free-text reference to exactly one task from a candidate list.
Pick the candidate whose meaning matches the query, even without a literal substring match.
Answer with JSON only: {"matched_id": "<ID from the list>"} or {"matched_id": null} when nothing fits.`
