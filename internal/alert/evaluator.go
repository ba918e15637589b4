// Package alert turns weather observations into alert levels and decides
// whether a level change is worth a notification.
package alert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// Thresholds configures the evaluator. Temperatures and drops are in °C,
// WindLevel is on the 0-17 wind scale reported by the weather source.
type Thresholds struct {
	OrangeFreeze int
	RedFreeze    int
	OrangeDrop   int
	RedDrop      int
	WindLevel    int
	WindKeyword  string
}

// DefaultThresholds returns the reference alert thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OrangeFreeze: -15,
		RedFreeze:    -20,
		OrangeDrop:   3,
		RedDrop:      5,
		WindLevel:    4,
		WindKeyword:  "北",
	}
}

// Validate checks that the levels are ordered and usable.
func (t Thresholds) Validate() error {
	if t.RedFreeze > t.OrangeFreeze {
		return fmt.Errorf("red freeze threshold %d must not be above orange %d", t.RedFreeze, t.OrangeFreeze)
	}
	if t.OrangeDrop <= 0 {
		return fmt.Errorf("orange drop threshold must be positive, got %d", t.OrangeDrop)
	}
	if t.RedDrop < t.OrangeDrop {
		return fmt.Errorf("red drop threshold %d must not be below orange %d", t.RedDrop, t.OrangeDrop)
	}
	if t.WindLevel < 0 || t.WindLevel > 17 {
		return fmt.Errorf("wind level %d out of range 0-17", t.WindLevel)
	}
	if t.WindKeyword == "" {
		return errors.New("wind keyword is required")
	}
	return nil
}

// Evaluator applies Thresholds to observations. It holds no state between calls.
type Evaluator struct {
	thresholds Thresholds
}

func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// finding is what a single check proposes.
type finding struct {
	message  string
	severity models.Severity
}

// Evaluate runs the cold, drop and wind checks against current and folds
// their findings into one record. previous may be nil.
func (e *Evaluator) Evaluate(current models.Observation, previous *models.Observation, last models.Severity) models.AlertRecord {
	checks := []func() (finding, bool){
		func() (finding, bool) { return e.checkCold(current) },
		func() (finding, bool) { return e.checkDrop(current, previous) },
		func() (finding, bool) { return e.checkWind(current) },
	}

	record := models.AlertRecord{
		Alerts:   make([]string, 0, len(checks)),
		Severity: models.SeverityNormal,
	}
	for _, check := range checks {
		f, fired := check()
		if !fired {
			continue
		}
		record.Alerts = append(record.Alerts, f.message)
		record.Severity = models.MaxSeverity(record.Severity, f.severity)
	}
	record.SeverityIncreased = record.Severity > last
	return record
}

func (e *Evaluator) checkCold(current models.Observation) (finding, bool) {
	feels, ok := readInt(current.FeelsLike)
	if !ok {
		return finding{}, false
	}
	switch {
	case feels <= e.thresholds.RedFreeze:
		return finding{fmt.Sprintf("🥶 红色极寒警报：体感低至 %d℃", feels), models.SeverityRed}, true
	case feels <= e.thresholds.OrangeFreeze:
		return finding{fmt.Sprintf("❄️ 橙色寒冷提示：体感低至 %d℃", feels), models.SeverityOrange}, true
	}
	return finding{}, false
}

func (e *Evaluator) checkDrop(current models.Observation, previous *models.Observation) (finding, bool) {
	if previous == nil {
		return finding{}, false
	}
	before, ok := readInt(previous.FeelsLike)
	if !ok {
		return finding{}, false
	}
	now, ok := readInt(current.FeelsLike)
	if !ok {
		return finding{}, false
	}
	drop := before - now
	switch {
	case drop <= 0:
		return finding{}, false
	case drop >= e.thresholds.RedDrop:
		return finding{fmt.Sprintf("📉 红色降温预警：体感骤降 %d℃", drop), models.SeverityRed}, true
	case drop >= e.thresholds.OrangeDrop:
		return finding{fmt.Sprintf("🟧 橙色降温提示：体感下降 %d℃", drop), models.SeverityOrange}, true
	}
	return finding{}, false
}

func (e *Evaluator) checkWind(current models.Observation) (finding, bool) {
	if !strings.Contains(current.WindDir, e.thresholds.WindKeyword) {
		return finding{}, false
	}
	level, ok := readInt(current.WindScale)
	if !ok || level < e.thresholds.WindLevel {
		return finding{}, false
	}
	return finding{fmt.Sprintf("💨 大风警报：%s %s级", current.WindDir, current.WindScale), models.SeverityOrange}, true
}
