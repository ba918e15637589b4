package client

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
	"go.uber.org/zap"
)

var (
	zhLine = regexp.MustCompile(`(?i)ZH:\s*(.+)`)
	enLine = regexp.MustCompile(`(?i)EN:\s*(.+)`)
)

// ErrEmptyCompletion is returned when the model answered without text.
var ErrEmptyCompletion = errors.New("empty completion")

type GeminiClient struct {
	*BaseClient
	model   string
	baseURL string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type GeminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiClient(apiKey, model, baseURL string, config ClientConfig, logger *zap.Logger) *GeminiClient {
	config.Headers = withHeader(config.Headers, "x-goog-api-key", apiKey)
	return &GeminiClient{
		BaseClient: NewBaseClient("gemini", config, logger),
		model:      model,
		baseURL:    baseURL,
	}
}

// Complete sends a single-turn prompt and returns the first candidate's text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	request := GeminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}

	var response GeminiResponse
	if err := c.PostJSON(ctx, endpoint, request, &response); err != nil {
		return "", fmt.Errorf("gemini generateContent: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Brief asks the model for a one-line care note in Chinese and English.
func (c *GeminiClient) Brief(ctx context.Context, obs models.Observation) (models.Briefing, error) {
	text, err := c.Complete(ctx, briefingPrompt(obs))
	if err != nil {
		return models.Briefing{}, err
	}
	return ParseBriefing(text), nil
}

func briefingPrompt(obs models.Observation) string {
	return fmt.Sprintf(`城市：%s
天气：%s，气温：%s℃，体感：%s℃，风向：%s，风力：%s级，湿度：%s%%。

请分别用「中文」和「英文」各写一句不超过 20 个字的天气关怀提示，语气要温暖、贴心、生活化。
格式要求：
1. 在单位和标点/正文汉字周围加空格（例如：16°C 多云）。
2. 中文简报和英文简报分开输出，中间用空行隔开。
严格按照下面格式输出：
ZH: 中文简报
EN: ENGLISH BRIEFING`,
		obs.Location, obs.Text, obs.Temp, obs.FeelsLike, obs.WindDir, obs.WindScale, obs.Humidity)
}

// ParseBriefing extracts the ZH and EN lines. Without a ZH line the whole text
// is used; without an EN line the Chinese text is reused.
func ParseBriefing(text string) models.Briefing {
	brief := models.Briefing{ZH: strings.TrimSpace(text)}
	if m := zhLine.FindStringSubmatch(text); m != nil {
		brief.ZH = strings.TrimSpace(m[1])
	}
	if m := enLine.FindStringSubmatch(text); m != nil {
		brief.EN = strings.TrimSpace(m[1])
	}
	if brief.EN == "" {
		brief.EN = brief.ZH
	}
	return brief
}
