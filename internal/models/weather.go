package models

import (
	"strings"
	"time"
)

// Observation is the current-conditions snapshot of one location as reported
// by the weather source. Values stay in their reported text form; callers that
// need numbers parse them leniently.
type Observation struct {
	Location   string    `json:"name"`
	ObservedAt time.Time `json:"updateTime"`
	Temp       string    `json:"temp"`
	FeelsLike  string    `json:"feelsLike"`
	Text       string    `json:"text"`
	WindDir    string    `json:"windDir"`
	WindScale  string    `json:"windScale"`
	WindSpeed  string    `json:"windSpeed"`
	Wind360    string    `json:"wind360"`
	Humidity   string    `json:"humidity"`
	Precip     string    `json:"precip"`
	Pressure   string    `json:"pressure"`
	Vis        string    `json:"vis"`
	Dew        string    `json:"dew"`
	Cloud      string    `json:"cloud"`
}

// Briefing is the short bilingual care note generated for an observation.
type Briefing struct {
	ZH string `json:"zh"`
	EN string `json:"en"`
}

// HistoryRecord is one archived observation together with what the run derived from it.
type HistoryRecord struct {
	Observation
	AIBriefing   string  `json:"ai_briefing"`
	AIBriefingZH string  `json:"ai_briefing_zh"`
	AIBriefingEN string  `json:"ai_briefing_en"`
	Alert        *string `json:"alert"`
}

// CityStatus is the compact per-city entry of the published status file.
type CityStatus struct {
	Name      string  `json:"name"`
	Temp      string  `json:"temp"`
	FeelsLike string  `json:"feelsLike"`
	Text      string  `json:"text"`
	Wind      string  `json:"wind"`
	Humidity  string  `json:"humidity"`
	Alert     *string `json:"alert"`
}

// NewCityStatus condenses an observation and its alerts into a status entry.
func NewCityStatus(obs Observation, alerts []string) CityStatus {
	return CityStatus{
		Name:      obs.Location,
		Temp:      obs.Temp,
		FeelsLike: obs.FeelsLike,
		Text:      obs.Text,
		Wind:      obs.WindDir + obs.WindScale + "级",
		Humidity:  obs.Humidity,
		Alert:     JoinAlerts(alerts, " "),
	}
}

// NewHistoryRecord builds the archive entry for one evaluated observation.
func NewHistoryRecord(obs Observation, brief Briefing, alerts []string) HistoryRecord {
	return HistoryRecord{
		Observation:  obs,
		AIBriefing:   brief.ZH,
		AIBriefingZH: brief.ZH,
		AIBriefingEN: brief.EN,
		Alert:        JoinAlerts(alerts, " | "),
	}
}

// JoinAlerts returns nil when there is nothing to report so the field encodes as null.
func JoinAlerts(alerts []string, sep string) *string {
	if len(alerts) == 0 {
		return nil
	}
	joined := strings.Join(alerts, sep)
	return &joined
}

// MemoryEntry is the persisted alert memory of one location.
type MemoryEntry struct {
	LastSeverity Severity `json:"lastSeverity"`
}

// StatusSnapshot is the published state after a run: the latest status of
// every known city and the severity memory used by the next run.
type StatusSnapshot struct {
	UpdateTime time.Time              `json:"updateTime"`
	Cities     []CityStatus           `json:"cities"`
	Memory     map[string]MemoryEntry `json:"memory"`
}
