package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/fileutil"
	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// FileStore keeps the memory in a single JSON status file, rewritten in full
// on every flush.
type FileStore struct {
	*state
	path   string
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewFileStore(path string, clock clockwork.Clock, logger *zap.Logger) *FileStore {
	return &FileStore{
		state:  newState(),
		path:   path,
		clock:  clock,
		logger: logger,
	}
}

func (f *FileStore) Path() string {
	return f.path
}

// Load reads the status file. A missing file is an empty memory; an
// unreadable one leaves the memory empty and returns the error.
func (f *FileStore) Load(_ context.Context) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.clear()
		f.logger.Info("No status file, starting with empty memory", zap.String("path", f.path))
		return nil
	}
	if err != nil {
		f.clear()
		return fmt.Errorf("read status file: %w", err)
	}

	var snap models.StatusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		f.clear()
		return fmt.Errorf("decode status file %s: %w", f.path, err)
	}
	f.restore(snap)

	f.logger.Debug("Memory loaded",
		zap.String("path", f.path),
		zap.Int("locations", len(snap.Memory)))
	return nil
}

// Flush stamps the update time and atomically replaces the status file.
func (f *FileStore) Flush(_ context.Context) error {
	f.touch(f.clock.Now())
	data, err := json.MarshalIndent(f.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := fileutil.WriteFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}
