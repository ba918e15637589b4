// Package archive stores the append-only per-city history of observations,
// partitioned by local calendar day.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

var (
	ErrInvalidLocation = errors.New("invalid location name")
	ErrInvalidDay      = errors.New("invalid day key")
)

// Sink appends one record to a location's series for a day, creating the
// series when it does not exist yet.
type Sink interface {
	Append(ctx context.Context, location, day string, record models.HistoryRecord) error
}

// Reader returns a location's series for a day in append order. A series that
// was never written is empty, not an error.
type Reader interface {
	History(ctx context.Context, location, day string) ([]models.HistoryRecord, error)
}

type Archive interface {
	Sink
	Reader
}

// DailySnapshotter is implemented by archives that also keep a whole-run
// snapshot of every city next to the series.
type DailySnapshotter interface {
	WriteDaily(ctx context.Context, day string, records map[string]models.HistoryRecord) error
}

func validate(location, day string) error {
	if location == "" || location == "." || location == ".." ||
		strings.ContainsAny(location, `/\`) || filepath.Base(location) != location {
		return fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	if !models.ValidDayKey(day) {
		return fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return nil
}
