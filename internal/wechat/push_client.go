package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Client sends customer-service messages through the platform send API.
// Every call is attempted exactly once; failures are reported as values,
// never retried.
type Client struct {
	apiBase string
	tokens  *TokenCache
	httpc   *http.Client
	log     *slog.Logger
}

func NewClient(log *slog.Logger, apiBase string, tokens *TokenCache, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = NewHTTPClient()
	}
	return &Client{
		apiBase: apiBase,
		tokens:  tokens,
		httpc:   httpc,
		log:     log,
	}
}

type sendEnvelope struct {
	ToUser  string   `json:"touser"`
	MsgType string   `json:"msgtype"`
	Text    sendText `json:"text"`
}

type sendText struct {
	Content string `json:"content"`
}

// SendText pushes a text message to a single openid. The HTTP layer
// rejects empty inputs before this is invoked.
func (c *Client) SendText(ctx context.Context, openid, content string) (bool, string) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return false, "failed to obtain access token"
	}

	payload, err := json.Marshal(sendEnvelope{
		ToUser:  openid,
		MsgType: MsgTypeText,
		Text:    sendText{Content: content},
	})
	if err != nil {
		return false, fmt.Sprintf("encode payload: %v", err)
	}

	u := fmt.Sprintf("%s/cgi-bin/message/custom/send?access_token=%s", c.apiBase, url.QueryEscape(tok))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("push_send_failed", "openid", openid, "error", err)
		return false, fmt.Sprintf("send failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Sprintf("read response: %v", err)
	}

	// Only an explicit errcode of 0 counts as delivered; a response
	// without the field is a failure, not an implicit success.
	var out struct {
		ErrCode *int   `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Sprintf("decode response: %v", err)
	}

	if out.ErrCode == nil || *out.ErrCode != 0 {
		msg := out.ErrMsg
		if msg == "" {
			msg = "unknown error"
		}
		if out.ErrCode == nil {
			c.log.Warn("push_rejected", "openid", openid, "errcode", "absent", "errmsg", msg)
		} else {
			c.log.Warn("push_rejected", "openid", openid, "errcode", *out.ErrCode, "errmsg", msg)
		}
		return false, fmt.Sprintf("push rejected: %s", msg)
	}

	c.log.Info("push_sent", "openid", openid)
	return true, "message sent"
}

// Broadcast sends the same text to every recipient sequentially and
// accumulates the outcome. The recipient list comes from the subscriber
// registry, not from this client.
func (c *Client) Broadcast(ctx context.Context, openids []string, content string) (sent, failed int, errs []string) {
	for _, openid := range openids {
		ok, msg := c.SendText(ctx, openid, content)
		if ok {
			sent++
			continue
		}
		failed++
		errs = append(errs, fmt.Sprintf("%s: %s", openid, msg))
	}
	return sent, failed, errs
}
