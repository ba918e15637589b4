package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/fileutil"
	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

const dailySnapshotName = "full_data.json"

// FileArchive lays series out as <root>/<YYYY>/<YYYYMMDD>/<city>.json, each a
// JSON array rewritten on append.
type FileArchive struct {
	root       string
	latestPath string
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewFileArchive creates an archive under root. latestPath, when set, receives
// the merged latest record of every city after each run.
func NewFileArchive(root, latestPath string, logger *zap.Logger) *FileArchive {
	return &FileArchive{
		root:       root,
		latestPath: latestPath,
		logger:     logger,
	}
}

func (a *FileArchive) dayDir(day string) string {
	return filepath.Join(a.root, day[:4], day)
}

func (a *FileArchive) seriesPath(location, day string) string {
	return filepath.Join(a.dayDir(day), location+".json")
}

func (a *FileArchive) Append(_ context.Context, location, day string, record models.HistoryRecord) error {
	if err := validate(location, day); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.seriesPath(location, day)
	series, err := readSeries(path)
	if err != nil {
		// A damaged series is restarted rather than blocking new records.
		a.logger.Warn("Failed to read history file, starting a new series",
			zap.String("path", path),
			zap.Error(err))
		series = nil
	}
	series = append(series, record)

	data, err := json.MarshalIndent(series, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write history %s: %w", path, err)
	}
	return nil
}

func (a *FileArchive) History(_ context.Context, location, day string) ([]models.HistoryRecord, error) {
	if err := validate(location, day); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	series, err := readSeries(a.seriesPath(location, day))
	if err != nil {
		return nil, err
	}
	if series == nil {
		series = []models.HistoryRecord{}
	}
	return series, nil
}

// WriteDaily overwrites the day's full snapshot and merges records into the
// latest file, keeping cities that were not part of this run.
func (a *FileArchive) WriteDaily(_ context.Context, day string, records map[string]models.HistoryRecord) error {
	if !models.ValidDayKey(day) {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	latest := make(map[string]models.HistoryRecord)
	if a.latestPath != "" {
		if data, err := os.ReadFile(a.latestPath); err == nil {
			if err := json.Unmarshal(data, &latest); err != nil {
				a.logger.Warn("Ignoring unreadable latest file",
					zap.String("path", a.latestPath),
					zap.Error(err))
				latest = make(map[string]models.HistoryRecord)
			}
		}
	}
	for name, rec := range records {
		latest[name] = rec
	}

	data, err := json.MarshalIndent(latest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode latest: %w", err)
	}
	if a.latestPath != "" {
		if err := fileutil.WriteFileAtomic(a.latestPath, data); err != nil {
			return fmt.Errorf("write latest: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(a.dayDir(day), dailySnapshotName), data); err != nil {
		return fmt.Errorf("write daily snapshot: %w", err)
	}
	return nil
}

func readSeries(path string) ([]models.HistoryRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var series []models.HistoryRecord
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return series, nil
}
