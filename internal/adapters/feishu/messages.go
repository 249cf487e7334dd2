package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

func textContent(text string) string {
	data, _ := json.Marshal(map[string]string{"text": text})
	return string(data)
}

// Reply answers message replyTo with a text message and returns the new
// message's id, which Update accepts as a handle.
func (c *Client) Reply(ctx context.Context, replyTo, text string) (string, error) {
	var out struct {
		MessageID string `json:"message_id"`
	}
	err := c.call(ctx, "reply message", http.MethodPost,
		"/im/v1/messages/"+url.PathEscape(replyTo)+"/reply", nil,
		map[string]string{"msg_type": "text", "content": textContent(text)},
		&out,
	)
	if err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// Update replaces the text of a message the bot sent.
func (c *Client) Update(ctx context.Context, messageID, text string) error {
	return c.call(ctx, "update message", http.MethodPut,
		"/im/v1/messages/"+url.PathEscape(messageID), nil,
		map[string]string{"msg_type": "text", "content": textContent(text)},
		nil,
	)
}

// BotID returns the bot's own open_id.
func (c *Client) BotID(ctx context.Context) (string, error) {
	// bot/v3/info puts the payload under "bot" instead of "data".
	var out struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}

	token, err := c.tenantToken(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bot/v3/info", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Code != 0 {
		return "", &APIError{Op: "bot info", Code: out.Code, Msg: out.Msg}
	}
	c.log.Info("bot identity resolved", "open_id", out.Bot.OpenID, "app_name", out.Bot.AppName)
	return out.Bot.OpenID, nil
}
