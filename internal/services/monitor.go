package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/alert"
	"github.com/bobby-s-dev/weather-monitor/internal/archive"
	"github.com/bobby-s-dev/weather-monitor/internal/memory"
	"github.com/bobby-s-dev/weather-monitor/internal/models"
	"github.com/bobby-s-dev/weather-monitor/internal/notify"
	"github.com/bobby-s-dev/weather-monitor/internal/observability"
)

// ErrRunInProgress is returned by Run while another run holds the monitor.
var ErrRunInProgress = errors.New("monitor run already in progress")

const briefingUnavailable = "AI 简报暂不可用"

// persistTimeout bounds archive writes and the memory flush once the run
// context is gone.
const persistTimeout = 30 * time.Second

type WeatherSource interface {
	Now(ctx context.Context, loc models.Location) (*models.Observation, error)
}

type Briefer interface {
	Brief(ctx context.Context, obs models.Observation) (models.Briefing, error)
}

type Notifier interface {
	Notify(ctx context.Context, text, tag string) bool
}

type Options struct {
	Locations  []models.Location
	Thresholds alert.Thresholds
	Quiet      alert.QuietWindow
	DetailURL  string
	// BriefPacing is the pause before every briefing request after the first.
	BriefPacing time.Duration
}

// CityResult is what one run did for one location.
type CityResult struct {
	Location string          `json:"location"`
	Severity models.Severity `json:"severity"`
	Alerts   []string        `json:"alerts"`
	Decision alert.Decision  `json:"decision,omitempty"`
	Notified bool            `json:"notified"`
	Error    string          `json:"error,omitempty"`
}

type RunReport struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Day        string       `json:"day"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Cities     []CityResult `json:"cities"`
}

type Monitor struct {
	source    WeatherSource
	briefer   Briefer
	memory    memory.Store
	archive   archive.Sink
	notifier  Notifier
	evaluator *alert.Evaluator
	policy    alert.Policy
	locations []models.Location
	detailURL string
	pacing    time.Duration
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *zap.Logger

	running sync.Mutex

	mu         sync.RWMutex
	lastReport *RunReport
}

// NewMonitor wires a monitor. briefer may be nil, in which case every record
// carries the placeholder briefing.
func NewMonitor(
	opts Options,
	source WeatherSource,
	briefer Briefer,
	store memory.Store,
	sink archive.Sink,
	notifier Notifier,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		source:    source,
		briefer:   briefer,
		memory:    store,
		archive:   sink,
		notifier:  notifier,
		evaluator: alert.NewEvaluator(opts.Thresholds),
		policy:    alert.Policy{Quiet: opts.Quiet},
		locations: opts.Locations,
		detailURL: opts.DetailURL,
		pacing:    opts.BriefPacing,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
	}
}

func (m *Monitor) Locations() []models.Location {
	out := make([]models.Location, len(m.locations))
	copy(out, m.locations)
	return out
}

// Busy reports whether a run currently holds the monitor.
func (m *Monitor) Busy() bool {
	if m.running.TryLock() {
		m.running.Unlock()
		return false
	}
	return true
}

// LastReport returns the report of the last finished run, or nil.
func (m *Monitor) LastReport() *RunReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReport
}

func (m *Monitor) LastRunTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastReport == nil {
		return time.Time{}
	}
	return m.lastReport.FinishedAt
}

// Run performs one monitoring pass over every configured location. Per-city
// failures are logged and reported; only a failed memory flush is returned as
// an error next to the report.
func (m *Monitor) Run(ctx context.Context) (*RunReport, error) {
	if !m.running.TryLock() {
		m.metrics.Runs.WithLabelValues("rejected").Inc()
		return nil, ErrRunInProgress
	}
	defer m.running.Unlock()

	report := &RunReport{RunID: uuid.NewString(), StartedAt: m.clock.Now()}
	log := m.logger.With(zap.String("run_id", report.RunID))
	log.Info("Starting monitor run", zap.Int("locations", len(m.locations)))

	if err := m.memory.Load(ctx); err != nil {
		log.Warn("Memory unreadable, starting without prior state", zap.Error(err))
	}

	observations, fetchErrs := m.fetchAll(ctx, log)

	// Anything evaluated must be persisted even if ctx ends mid-run, otherwise
	// a push already sent would be sent again by the next run.
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	now := m.clock.Now()
	report.Day = models.DayKey(now)
	daily := make(map[string]models.HistoryRecord, len(m.locations))
	briefed := 0

	for i, loc := range m.locations {
		obs := observations[i]
		if obs == nil {
			report.Failed++
			report.Cities = append(report.Cities, CityResult{
				Location: loc.Name,
				Severity: m.memory.Get(loc.Name),
				Error:    fetchErrs[i].Error(),
			})
			continue
		}
		report.Succeeded++

		result := m.evaluate(ctx, log, loc, *obs, now)

		brief := m.brief(ctx, log, *obs, briefed)
		briefed++

		record := models.NewHistoryRecord(*obs, brief, result.Alerts)
		daily[loc.Name] = record
		if err := m.archive.Append(persistCtx, loc.Name, report.Day, record); err != nil {
			m.metrics.ArchiveErrors.Inc()
			log.Warn("Failed to archive observation",
				zap.String("location", loc.Name),
				zap.Error(err))
		}

		report.Cities = append(report.Cities, result)
	}

	if snap, ok := m.archive.(archive.DailySnapshotter); ok && len(daily) > 0 {
		if err := snap.WriteDaily(persistCtx, report.Day, daily); err != nil {
			m.metrics.ArchiveErrors.Inc()
			log.Warn("Failed to write daily snapshot", zap.Error(err))
		}
	}

	var runErr error
	if err := m.memory.Flush(persistCtx); err != nil {
		log.Error("Failed to flush memory", zap.Error(err))
		runErr = fmt.Errorf("flush memory: %w", err)
	}

	report.FinishedAt = m.clock.Now()
	duration := report.FinishedAt.Sub(report.StartedAt)
	m.metrics.Runs.WithLabelValues("completed").Inc()
	m.metrics.RunDuration.Observe(duration.Seconds())
	m.metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))

	m.mu.Lock()
	m.lastReport = report
	m.mu.Unlock()

	log.Info("Monitor run completed",
		zap.Duration("duration", duration),
		zap.Int("success", report.Succeeded),
		zap.Int("failure", report.Failed))

	return report, runErr
}

// fetchAll queries every location concurrently. The result slices are indexed
// like m.locations; a nil observation pairs with a non-nil error.
func (m *Monitor) fetchAll(ctx context.Context, log *zap.Logger) ([]*models.Observation, []error) {
	observations := make([]*models.Observation, len(m.locations))
	errs := make([]error, len(m.locations))

	var wg sync.WaitGroup
	for i, loc := range m.locations {
		wg.Add(1)
		go func(i int, loc models.Location) {
			defer wg.Done()

			obs, err := m.source.Now(ctx, loc)
			if err == nil && obs == nil {
				err = fmt.Errorf("no observation for %s", loc.Name)
			}
			if err != nil {
				log.Error("Failed to fetch weather for location",
					zap.String("location", loc.Name),
					zap.Error(err))
				m.metrics.Fetches.WithLabelValues("error").Inc()
				errs[i] = err
				return
			}
			m.metrics.Fetches.WithLabelValues("success").Inc()
			obs.Location = loc.Name
			observations[i] = obs
		}(i, loc)
	}
	wg.Wait()

	return observations, errs
}

// evaluate runs the evaluator against stored memory, records the new state
// and sends the push when the policy allows it.
func (m *Monitor) evaluate(ctx context.Context, log *zap.Logger, loc models.Location, obs models.Observation, now time.Time) CityResult {
	previous, _ := m.memory.Previous(loc.Name)
	last := m.memory.Get(loc.Name)

	record := m.evaluator.Evaluate(obs, previous, last)

	m.memory.Set(loc.Name, record.Severity)
	m.memory.Remember(models.NewCityStatus(obs, record.Alerts))

	m.metrics.Alerts.WithLabelValues(record.Severity.String()).Inc()
	m.metrics.LocationSeverity.WithLabelValues(loc.Name).Set(float64(record.Severity))

	decision := m.policy.Decide(record, loc, now)
	m.metrics.Decisions.WithLabelValues(string(decision)).Inc()

	result := CityResult{
		Location: loc.Name,
		Severity: record.Severity,
		Alerts:   record.Alerts,
		Decision: decision,
	}

	log.Info("Location evaluated",
		zap.String("location", loc.Name),
		zap.Stringer("severity", record.Severity),
		zap.Stringer("last_severity", last),
		zap.Strings("alerts", record.Alerts),
		zap.String("decision", string(decision)))

	if decision != alert.DecisionNotify {
		return result
	}

	text := notify.FormatAlert(obs, record.Alerts, m.detailURL)
	result.Notified = m.notifier.Notify(ctx, text, loc.Tag)
	if result.Notified {
		m.metrics.Notifications.WithLabelValues("sent").Inc()
	} else {
		m.metrics.Notifications.WithLabelValues("failed").Inc()
	}
	return result
}

// brief returns the care note for obs, falling back to a placeholder when no
// briefer is configured or the request fails.
func (m *Monitor) brief(ctx context.Context, log *zap.Logger, obs models.Observation, n int) models.Briefing {
	fallback := models.Briefing{ZH: briefingUnavailable, EN: briefingUnavailable}
	if m.briefer == nil {
		return fallback
	}

	if n > 0 && m.pacing > 0 {
		select {
		case <-ctx.Done():
			return fallback
		case <-m.clock.After(m.pacing):
		}
	}

	brief, err := m.briefer.Brief(ctx, obs)
	if err != nil {
		log.Warn("Briefing failed",
			zap.String("location", obs.Location),
			zap.Error(err))
		return fallback
	}
	return brief
}
