package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// PushPlusSender publishes to a PushPlus group topic.
type PushPlusSender struct {
	httpClient *resty.Client
	sendURL    string
	token      string
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewPushPlusSender posts to sendURL, normally http://www.pushplus.plus/send.
func NewPushPlusSender(sendURL, token string, timeout time.Duration) *PushPlusSender {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &PushPlusSender{httpClient: client, sendURL: sendURL, token: token}
}

func (p *PushPlusSender) Send(ctx context.Context, text, tag string) error {
	var result pushPlusResponse
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(pushPlusRequest{
			Token:    p.token,
			Topic:    tag,
			Title:    title(text),
			Content:  text,
			Template: "markdown",
		}).
		SetResult(&result).
		Post(p.sendURL)
	if err != nil {
		return fmt.Errorf("pushplus send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pushplus send: HTTP %d", resp.StatusCode())
	}
	if result.Code != 200 {
		return fmt.Errorf("pushplus send: %s (code %d)", result.Msg, result.Code)
	}
	return nil
}

// title is the first line of the message without markdown heading marks.
func title(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}
