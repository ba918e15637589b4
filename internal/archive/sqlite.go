package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// SQLiteArchive keeps every series in one table of a SQLite database.
type SQLiteArchive struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// Appends come from a single run at a time; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location TEXT NOT NULL,
			day TEXT NOT NULL,
			observed_at TEXT,
			alert_text TEXT,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_history_location_day ON history(location, day, id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

func (a *SQLiteArchive) Append(ctx context.Context, location, day string, record models.HistoryRecord) error {
	if err := validate(location, day); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	var alert sql.NullString
	if record.Alert != nil {
		alert = sql.NullString{String: *record.Alert, Valid: true}
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO history (location, day, observed_at, alert_text, payload) VALUES (?, ?, ?, ?, ?)`,
		location, day, record.ObservedAt.Format(time.RFC3339), alert, string(payload))
	if err != nil {
		return fmt.Errorf("inserting history for %s: %w", location, err)
	}
	return nil
}

func (a *SQLiteArchive) History(ctx context.Context, location, day string) ([]models.HistoryRecord, error) {
	if err := validate(location, day); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT payload FROM history WHERE location = ? AND day = ? ORDER BY id`, location, day)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", location, err)
	}
	defer rows.Close()

	series := []models.HistoryRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		var rec models.HistoryRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding history row: %w", err)
		}
		series = append(series, rec)
	}
	return series, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
