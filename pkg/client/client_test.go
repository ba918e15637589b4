package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

func testConfig() ClientConfig {
	return ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Multiplier:     1,
		Threshold:      10,
		BreakerTimeout: time.Second,
	}
}

const nowBody = `{
  "code": "200",
  "updateTime": "2025-12-02T10:42+08:00",
  "now": {
    "obsTime": "2025-12-02T10:35+08:00",
    "temp": "-12", "feelsLike": "-18", "icon": "100", "text": "晴",
    "wind360": "315", "windDir": "西北风", "windScale": "4", "windSpeed": "24",
    "humidity": "21", "precip": "0.0", "pressure": "1031", "vis": "30",
    "cloud": "0", "dew": "-30"
  }
}`

func TestQWeatherClient_Now(t *testing.T) {
	var gotQuery string
	var gotReferer string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/weather/now", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotReferer = r.Header.Get("Referer")
		gotKey = r.Header.Get("X-QW-Api-Key")
		io.WriteString(w, nowBody)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Headers = map[string]string{"Referer": "https://example.org"}
	c := NewQWeatherClient("secret", srv.URL, cfg, zap.NewNop())

	obs, err := c.Now(context.Background(), models.Location{ID: "101010100", Name: "北京"})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "location=101010100")
	assert.NotContains(t, gotQuery, "secret")
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "https://example.org", gotReferer)
	assert.Equal(t, map[string]string{"Referer": "https://example.org"}, cfg.Headers)
	assert.Equal(t, "北京", obs.Location)
	assert.Equal(t, "-18", obs.FeelsLike)
	assert.Equal(t, "西北风", obs.WindDir)
	assert.Equal(t, "4", obs.WindScale)
	assert.Equal(t, time.Date(2025, time.December, 2, 2, 35, 0, 0, time.UTC), obs.ObservedAt.UTC())
}

func TestQWeatherClient_NonOKCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"code":"402"}`)
	}))
	defer srv.Close()

	c := NewQWeatherClient("k", srv.URL, testConfig(), zap.NewNop())
	_, err := c.Now(context.Background(), models.Location{ID: "1", Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
}

func TestBaseClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewBaseClient("test", testConfig(), zap.NewNop())
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewBaseClient("test", testConfig(), zap.NewNop())
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
	assert.Equal(t, int32(1), calls.Load())
}

func TestBaseClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewBaseClient("test", testConfig(), zap.NewNop())
	var out map[string]any
	err := c.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiClient_Brief(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ZH: 天冷 多穿衣\n\nEN: Bundle up today"}]}}]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "gemini-2.5-flash", srv.URL, testConfig(), zap.NewNop())
	brief, err := c.Brief(context.Background(), models.Observation{Location: "北京", FeelsLike: "-18"})
	require.NoError(t, err)

	assert.Equal(t, "天冷 多穿衣", brief.ZH)
	assert.Equal(t, "Bundle up today", brief.EN)
	assert.True(t, strings.Contains(gotBody, "北京"))
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "m", srv.URL, testConfig(), zap.NewNop())
	_, err := c.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestParseBriefing(t *testing.T) {
	assert.Equal(t, models.Briefing{ZH: "只有中文", EN: "只有中文"}, ParseBriefing("ZH: 只有中文"))
	assert.Equal(t, models.Briefing{ZH: "plain text", EN: "plain text"}, ParseBriefing("plain text"))
	assert.Equal(t, models.Briefing{ZH: "中", EN: "en"}, ParseBriefing("zh: 中\nen: en"))
}

func TestQWeatherClient_TransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewQWeatherClient("top-secret-key", addr, testConfig(), zap.NewNop())
	_, err := c.Now(context.Background(), models.Location{ID: "101010100", Name: "北京"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "top-secret-key")
}
