// Package memory persists the last known severity and status of every
// location between monitor runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// Store is the per-run memory of the monitor. Load replaces the in-process
// state with what was persisted; Flush writes the whole state back.
type Store interface {
	Load(ctx context.Context) error
	Get(location string) models.Severity
	Set(location string, severity models.Severity)
	Previous(location string) (*models.Observation, bool)
	Remember(status models.CityStatus)
	Snapshot() models.StatusSnapshot
	Flush(ctx context.Context) error
}

// state is the in-process view shared by the backends.
type state struct {
	mu       sync.RWMutex
	severity map[string]models.Severity
	cities   map[string]models.CityStatus
	updated  time.Time
}

func newState() *state {
	s := &state{}
	s.reset()
	return s
}

func (s *state) reset() {
	s.severity = make(map[string]models.Severity)
	s.cities = make(map[string]models.CityStatus)
	s.updated = time.Time{}
}

// Get returns the last severity of location, SeverityNormal when unknown.
func (s *state) Get(location string) models.Severity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.severity[location]
}

func (s *state) Set(location string, severity models.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.severity[location] = severity
}

// Previous rebuilds the last stored observation of location. Only the fields
// kept in the status entry are populated.
func (s *state) Previous(location string) (*models.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cities[location]
	if !ok {
		return nil, false
	}
	return &models.Observation{
		Location:  c.Name,
		Temp:      c.Temp,
		FeelsLike: c.FeelsLike,
		Text:      c.Text,
		Humidity:  c.Humidity,
	}, true
}

func (s *state) Remember(status models.CityStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cities[status.Name] = status
}

func (s *state) Snapshot() models.StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.StatusSnapshot{
		UpdateTime: s.updated,
		Cities:     make([]models.CityStatus, 0, len(s.cities)),
		Memory:     make(map[string]models.MemoryEntry, len(s.severity)),
	}
	for _, c := range s.cities {
		snap.Cities = append(snap.Cities, c)
	}
	for name, sev := range s.severity {
		snap.Memory[name] = models.MemoryEntry{LastSeverity: sev}
	}
	sortCities(snap.Cities)
	return snap
}

func (s *state) restore(snap models.StatusSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.updated = snap.UpdateTime
	for _, c := range snap.Cities {
		s.cities[c.Name] = c
	}
	for name, entry := range snap.Memory {
		s.severity[name] = entry.LastSeverity
	}
}

func (s *state) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *state) touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = t
}

// sortCities orders entries by their Chinese collation (pinyin) name.
func sortCities(cities []models.CityStatus) {
	c := collate.New(language.SimplifiedChinese)
	sort.SliceStable(cities, func(i, j int) bool {
		return c.CompareString(cities[i].Name, cities[j].Name) < 0
	})
}
