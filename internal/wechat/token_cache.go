package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"wechat-relay/internal/logging"
)

// tokenSafetyMargin: a cached token is treated as expired this long before
// its real expiry so in-flight sends never carry a token that dies mid-call.
const tokenSafetyMargin = 60 * time.Second

// TokenCache holds the single process-wide official-account access token.
// Refresh is lazy: the next caller past the safety margin performs the auth
// call while holding the lock, so concurrent expiry detections collapse
// into one request. On refresh failure the prior state is kept and the
// caller gets an error, which it must treat as "cannot push now".
type TokenCache struct {
	appID     string
	appSecret string
	apiBase   string
	httpc     *http.Client
	now       func() time.Time
	log       *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache(log *slog.Logger, appID, appSecret, apiBase string, httpc *http.Client, now func() time.Time) *TokenCache {
	if httpc == nil {
		httpc = NewHTTPClient()
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCache{
		appID:     appID,
		appSecret: appSecret,
		apiBase:   apiBase,
		httpc:     httpc,
		now:       now,
		log:       log,
	}
}

// Token returns a valid access token, refreshing it first when the cached
// one is missing or inside the safety margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenSafetyMargin)) {
		return c.token, nil
	}

	token, expiresIn, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn("access_token_refresh_failed", "error", err)
		return "", err
	}

	c.token = token
	c.expiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)

	c.log.Info("access_token_refreshed",
		"token", logging.MaskToken(token),
		"expires_in_s", expiresIn,
	)
	return c.token, nil
}

func (c *TokenCache) fetch(ctx context.Context) (string, int64, error) {
	if c.appID == "" || c.appSecret == "" {
		return "", 0, errors.New("app credentials not configured")
	}

	u := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		c.apiBase, url.QueryEscape(c.appID), url.QueryEscape(c.appSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("auth rejected: errcode=%d errmsg=%s", out.ErrCode, out.ErrMsg)
	}
	return out.AccessToken, out.ExpiresIn, nil
}
