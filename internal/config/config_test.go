package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("QWEATHER_KEY", "test-key")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "https://devapi.qweather.com", cfg.QWeather.BaseURL)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 800*time.Millisecond, cfg.Gemini.Pacing)
	assert.Equal(t, "log", cfg.Notify.Channel)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.Schedule)
	assert.Equal(t, "file", cfg.Storage.MemoryBackend)
	assert.Equal(t, "public/weather-status.json", cfg.Storage.StatusFile)
	assert.Equal(t, "file", cfg.Storage.ArchiveBackend)
	assert.Equal(t, -15, cfg.Alerts.OrangeFreeze)
	assert.Equal(t, -20, cfg.Alerts.RedFreeze)
	assert.Equal(t, 3, cfg.Alerts.OrangeDrop)
	assert.Equal(t, 5, cfg.Alerts.RedDrop)
	assert.Equal(t, 4, cfg.Alerts.WindLevel)
	assert.Equal(t, "北", cfg.Alerts.WindKeyword)
	assert.Equal(t, 22, cfg.QuietHours.StartHour)
	assert.Equal(t, 7, cfg.QuietHours.EndHour)
	require.Len(t, cfg.Scheduler.Cities, 3)
	assert.Equal(t, models.Location{ID: "101010100", Name: "北京"}, cfg.Scheduler.Cities[0])
}

func TestLoadConfig_RequiresWeatherKey(t *testing.T) {
	t.Setenv("QWEATHER_KEY", "")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QWEATHER_KEY")
}

func TestLoadConfig_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("MONITOR_CITIES", "101010100:北京:1, 101020100:上海")
	t.Setenv("ALERT_FREEZE_ORANGE", "-10")
	t.Setenv("ALERT_FREEZE_RED", "-18")
	t.Setenv("QUIET_START_HOUR", "23")
	t.Setenv("QUIET_END_HOUR", "6")
	t.Setenv("NOTIFY_CHANNEL", "PushPlus")
	t.Setenv("PUSHPLUS_TOKEN", "tok")
	t.Setenv("MEMORY_BACKEND", "redis")
	t.Setenv("ARCHIVE_BACKEND", "sqlite")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []models.Location{
		{ID: "101010100", Name: "北京", VIP: true, Tag: "1"},
		{ID: "101020100", Name: "上海"},
	}, cfg.Scheduler.Cities)
	assert.Equal(t, -10, cfg.Alerts.OrangeFreeze)
	assert.Equal(t, -18, cfg.Alerts.RedFreeze)
	assert.Equal(t, 23, cfg.QuietHours.StartHour)
	assert.Equal(t, "pushplus", cfg.Notify.Channel)
	assert.Equal(t, "redis", cfg.Storage.MemoryBackend)
	assert.Equal(t, "sqlite", cfg.Storage.ArchiveBackend)
}

func TestLoadConfig_CitiesFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "cities.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"101230201","name":"厦门","isVip":true,"tagId":"3"}]`), 0o644))
	t.Setenv("CITIES_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Scheduler.Cities, 1)
	assert.True(t, cfg.Scheduler.Cities[0].NotificationEligible())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad duration", "MONITOR_RUN_TIMEOUT", "soon", "MONITOR_RUN_TIMEOUT"},
		{"bad int", "ALERT_WIND_LEVEL", "strong", "ALERT_WIND_LEVEL"},
		{"unordered freeze", "ALERT_FREEZE_RED", "-5", "alert thresholds"},
		{"quiet hour range", "QUIET_END_HOUR", "25", "QUIET_END_HOUR"},
		{"unknown channel", "NOTIFY_CHANNEL", "pigeon", "NOTIFY_CHANNEL"},
		{"wechat incomplete", "NOTIFY_CHANNEL", "wechat", "WECHAT_CORP_ID"},
		{"unknown memory backend", "MEMORY_BACKEND", "s3", "MEMORY_BACKEND"},
		{"unknown archive backend", "ARCHIVE_BACKEND", "tape", "ARCHIVE_BACKEND"},
		{"malformed city", "MONITOR_CITIES", "101010100", "MONITOR_CITIES"},
		{"duplicate city", "MONITOR_CITIES", "1:北京,2:北京", "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
