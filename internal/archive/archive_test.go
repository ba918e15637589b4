package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

const testDay = "20251202"

func record(feels string, alerts ...string) models.HistoryRecord {
	return models.NewHistoryRecord(
		models.Observation{
			Location:   "北京",
			ObservedAt: time.Date(2025, time.December, 2, 10, 0, 0, 0, models.LocalZone),
			FeelsLike:  feels,
		},
		models.Briefing{ZH: "注意保暖", EN: "Stay warm"},
		alerts,
	)
}

// archives returns every backend so the shared behaviour is checked on each.
func archives(t *testing.T) map[string]Archive {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Archive{
		"file":   NewFileArchive(filepath.Join(dir, "history"), "", zap.NewNop()),
		"sqlite": db,
	}
}

func TestArchive_AppendKeepsOrder(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, a.Append(ctx, "北京", testDay, record("-5")))
			require.NoError(t, a.Append(ctx, "北京", testDay, record("-9", "降温")))

			series, err := a.History(ctx, "北京", testDay)
			require.NoError(t, err)
			require.Len(t, series, 2)
			assert.Equal(t, "-5", series[0].FeelsLike)
			assert.Nil(t, series[0].Alert)
			assert.Equal(t, "-9", series[1].FeelsLike)
			require.NotNil(t, series[1].Alert)
			assert.Equal(t, "降温", *series[1].Alert)
			assert.Equal(t, "Stay warm", series[1].AIBriefingEN)
		})
	}
}

func TestArchive_DaysAndLocationsArePartitioned(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, a.Append(ctx, "北京", testDay, record("1")))
			require.NoError(t, a.Append(ctx, "北京", "20251203", record("2")))
			require.NoError(t, a.Append(ctx, "上海", testDay, record("3")))

			series, err := a.History(ctx, "北京", testDay)
			require.NoError(t, err)
			assert.Len(t, series, 1)

			empty, err := a.History(ctx, "广州", testDay)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)
		})
	}
}

func TestArchive_RejectsBadKeys(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, a.Append(ctx, "../etc", testDay, record("1")), ErrInvalidLocation)
			assert.ErrorIs(t, a.Append(ctx, "", testDay, record("1")), ErrInvalidLocation)
			assert.ErrorIs(t, a.Append(ctx, "北京", "2025-12-02", record("1")), ErrInvalidDay)
			_, err := a.History(ctx, "北京", "yesterday")
			assert.ErrorIs(t, err, ErrInvalidDay)
		})
	}
}

func TestFileArchive_Layout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "history")
	a := NewFileArchive(root, "", zap.NewNop())
	require.NoError(t, a.Append(context.Background(), "北京", testDay, record("-5")))

	_, err := os.Stat(filepath.Join(root, "2025", testDay, "北京.json"))
	assert.NoError(t, err)
}

func TestFileArchive_RestartsDamagedSeries(t *testing.T) {
	root := filepath.Join(t.TempDir(), "history")
	path := filepath.Join(root, "2025", testDay, "北京.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	a := NewFileArchive(root, "", zap.NewNop())
	require.NoError(t, a.Append(context.Background(), "北京", testDay, record("-5")))

	series, err := a.History(context.Background(), "北京", testDay)
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestFileArchive_WriteDailyMergesLatest(t *testing.T) {
	dir := t.TempDir()
	latest := filepath.Join(dir, "latest-briefings.json")
	a := NewFileArchive(filepath.Join(dir, "history"), latest, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, a.WriteDaily(ctx, testDay, map[string]models.HistoryRecord{"上海": record("8")}))
	require.NoError(t, a.WriteDaily(ctx, testDay, map[string]models.HistoryRecord{"北京": record("-5")}))

	data, err := os.ReadFile(latest)
	require.NoError(t, err)
	var merged map[string]models.HistoryRecord
	require.NoError(t, json.Unmarshal(data, &merged))
	assert.Len(t, merged, 2)

	daily, err := os.ReadFile(filepath.Join(dir, "history", "2025", testDay, "full_data.json"))
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(daily))
}
