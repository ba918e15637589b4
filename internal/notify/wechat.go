package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// WeChat Work error codes for an invalid or expired access token.
const (
	wechatInvalidToken = 40014
	wechatExpiredToken = 42001
)

type WeChatConfig struct {
	BaseURL string
	CorpID  string
	Secret  string
	AgentID int
	Timeout time.Duration
}

// WeChatSender posts markdown app messages to a WeChat Work tag.
type WeChatSender struct {
	httpClient *resty.Client
	cfg        WeChatConfig
	clock      clockwork.Clock
	logger     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type wechatTokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type wechatMessage struct {
	ToTag    string `json:"totag"`
	MsgType  string `json:"msgtype"`
	AgentID  int    `json:"agentid"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
	Safe int `json:"safe"`
}

type wechatSendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewWeChatSender(cfg WeChatConfig, clock clockwork.Clock, logger *zap.Logger) *WeChatSender {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WeChatSender{
		httpClient: client,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
	}
}

func (w *WeChatSender) Send(ctx context.Context, text, tag string) error {
	token, err := w.accessToken(ctx)
	if err != nil {
		return err
	}

	msg := wechatMessage{ToTag: tag, MsgType: "markdown", AgentID: w.cfg.AgentID}
	msg.Markdown.Content = text

	var result wechatSendResponse
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetBody(msg).
		SetResult(&result).
		Post("/cgi-bin/message/send")
	if err != nil {
		return fmt.Errorf("wechat send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("wechat send: HTTP %d", resp.StatusCode())
	}
	if result.ErrCode != 0 {
		if result.ErrCode == wechatInvalidToken || result.ErrCode == wechatExpiredToken {
			w.invalidate()
		}
		return fmt.Errorf("wechat send: %s (errcode %d)", result.ErrMsg, result.ErrCode)
	}
	return nil
}

// accessToken returns the cached token, fetching a new one a minute before
// the old one expires.
func (w *WeChatSender) accessToken(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.token != "" && w.clock.Now().Before(w.expiresAt) {
		return w.token, nil
	}

	var result wechatTokenResponse
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"corpid":     w.cfg.CorpID,
			"corpsecret": w.cfg.Secret,
		}).
		SetResult(&result).
		Get("/cgi-bin/gettoken")
	if err != nil {
		return "", fmt.Errorf("wechat gettoken: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("wechat gettoken: HTTP %d", resp.StatusCode())
	}
	if result.ErrCode != 0 || result.AccessToken == "" {
		return "", fmt.Errorf("wechat gettoken: %s (errcode %d)", result.ErrMsg, result.ErrCode)
	}

	w.token = result.AccessToken
	w.expiresAt = w.clock.Now().Add(time.Duration(result.ExpiresIn)*time.Second - time.Minute)
	w.logger.Debug("WeChat access token refreshed", zap.Time("expires_at", w.expiresAt))
	return w.token, nil
}

func (w *WeChatSender) invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.token = ""
}
