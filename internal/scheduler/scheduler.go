package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
	"github.com/bobby-s-dev/weather-monitor/internal/services"
)

type Runner interface {
	Run(ctx context.Context) (*services.RunReport, error)
}

// Scheduler triggers monitor runs on a cron schedule evaluated in
// models.LocalZone. A tick that lands while the previous run is still going is
// skipped.
type Scheduler struct {
	runner  Runner
	clock   clockwork.Clock
	logger  *zap.Logger
	cron    *cron.Cron
	entry   cron.EntryID
	spec    string
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	forced sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

func NewScheduler(runner Runner, spec string, timeout time.Duration, clock clockwork.Clock, logger *zap.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:  runner,
		clock:   clock,
		logger:  logger,
		spec:    spec,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}

	cronLog := cronLogger{logger.Sugar()}
	s.cron = cron.New(
		cron.WithLocation(models.LocalZone),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	entry, err := s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = entry
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(s.entry).Next))
}

// Stop halts the schedule, cancels any run in flight and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	s.cancel()
	if wasRunning {
		<-s.cron.Stop().Done()
	}
	s.forced.Wait()
}

// ForceRun starts a run outside the schedule. It does not wait for the run.
func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering monitor run")
	s.forced.Add(1)
	go func() {
		defer s.forced.Done()
		s.runOnce()
	}()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	report, err := s.runner.Run(ctx)
	if errors.Is(err, services.ErrRunInProgress) {
		s.logger.Info("Skipping run, previous run still in progress")
		return
	}

	s.mu.Lock()
	s.lastRun = s.clock.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Monitor run failed", zap.Error(err))
		return
	}
	if report != nil {
		s.logger.Debug("Monitor run recorded", zap.String("run_id", report.RunID))
	}
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":  s.running,
		"schedule": s.spec,
		"timeout":  s.timeout.String(),
		"last_run": s.lastRun,
	}
	if s.running {
		status["next_run"] = s.cron.Entry(s.entry).Next
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
