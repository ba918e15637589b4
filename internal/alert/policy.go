package alert

import (
	"fmt"
	"time"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// QuietWindow is a local hour range [StartHour, EndHour) in which pushes are
// held back. A window may wrap midnight; equal hours disable it.
type QuietWindow struct {
	StartHour int
	EndHour   int
}

// DefaultQuietWindow is 22:00-07:00.
func DefaultQuietWindow() QuietWindow {
	return QuietWindow{StartHour: 22, EndHour: 7}
}

func (w QuietWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("quiet hours must be within 0-23, got %d-%d", w.StartHour, w.EndHour)
	}
	return nil
}

// Contains reports whether t, read in models.LocalZone, falls inside the window.
func (w QuietWindow) Contains(t time.Time) bool {
	hour := t.In(models.LocalZone).Hour()
	switch {
	case w.StartHour == w.EndHour:
		return false
	case w.StartHour < w.EndHour:
		return hour >= w.StartHour && hour < w.EndHour
	default:
		return hour >= w.StartHour || hour < w.EndHour
	}
}

// Decision is the outcome of the notification gate.
type Decision string

const (
	DecisionNotify       Decision = "notify"
	DecisionNotIncreased Decision = "not_increased"
	DecisionNotEligible  Decision = "not_eligible"
	DecisionQuietHours   Decision = "quiet_hours"
)

// Policy gates notifications around the evaluator's output.
type Policy struct {
	Quiet QuietWindow
}

// Decide returns DecisionNotify only for a severity increase at an eligible
// location outside quiet hours. It says nothing about memory or archival,
// which happen regardless.
func (p Policy) Decide(record models.AlertRecord, loc models.Location, now time.Time) Decision {
	if !record.SeverityIncreased {
		return DecisionNotIncreased
	}
	if !loc.NotificationEligible() {
		return DecisionNotEligible
	}
	if p.Quiet.Contains(now) {
		return DecisionQuietHours
	}
	return DecisionNotify
}
