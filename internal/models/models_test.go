package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_UsesUTCPlus8(t *testing.T) {
	// 16:30 UTC is already the next day in UTC+8.
	ts := time.Date(2025, 12, 1, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, "20251202", DayKey(ts))
	assert.True(t, ValidDayKey("20251202"))
	assert.False(t, ValidDayKey("2025-12-02"))
	assert.False(t, ValidDayKey("20251340"))
}

func TestNewCityStatus(t *testing.T) {
	obs := Observation{Location: "北京", Temp: "-3", FeelsLike: "-8", Text: "晴", WindDir: "北风", WindScale: "4", Humidity: "20"}

	status := NewCityStatus(obs, []string{"a", "b"})
	assert.Equal(t, "北风4级", status.Wind)
	require.NotNil(t, status.Alert)
	assert.Equal(t, "a b", *status.Alert)

	assert.Nil(t, NewCityStatus(obs, nil).Alert)
}

func TestNewHistoryRecord_JSON(t *testing.T) {
	obs := Observation{Location: "上海", FeelsLike: "2"}
	rec := NewHistoryRecord(obs, Briefing{ZH: "注意保暖", EN: "Stay warm"}, []string{"x", "y"})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "上海", fields["name"])
	assert.Equal(t, "注意保暖", fields["ai_briefing"])
	assert.Equal(t, "Stay warm", fields["ai_briefing_en"])
	assert.Equal(t, "x | y", fields["alert"])
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityRed, MaxSeverity(SeverityOrange, SeverityRed))
	assert.Equal(t, "orange", SeverityOrange.String())
	assert.False(t, Severity(3).Valid())

	for in, want := range map[string]Severity{"0": SeverityNormal, "orange": SeverityOrange, "2": SeverityRed} {
		got, err := ParseSeverity(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSeverity("purple")
	assert.Error(t, err)
}

func TestLocation_NotificationEligible(t *testing.T) {
	assert.True(t, Location{VIP: true, Tag: "1"}.NotificationEligible())
	assert.False(t, Location{VIP: true}.NotificationEligible())
	assert.False(t, Location{Tag: "1"}.NotificationEligible())
}
