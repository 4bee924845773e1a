package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/pavelanni/cbt/internal/model"
)

// SweepReport counts what a sweep pass changed.
type SweepReport struct {
	SchedulesStarted   int `json:"schedules_started"`
	SchedulesCompleted int `json:"schedules_completed"`
	AttemptsExpired    int `json:"attempts_expired"`
}

// Sweep starts due schedules, completes ended ones and auto-submits
// attempts whose time is up. Failures on one entity do not stop the pass.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		rep  SweepReport
		errs []error
	)
	now := e.now()

	scheduled, err := e.store.ListSchedulesByStatus(ctx, model.ScheduleScheduled)
	if err != nil {
		return rep, fmt.Errorf("list scheduled: %w", err)
	}
	for _, sc := range scheduled {
		if !sc.CanStart(now, e.cfg.Location) {
			continue
		}
		got, err := e.StartSchedule(ctx, sc.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("start schedule %d: %w", sc.ID, err))
			continue
		}
		if got.IsOngoing() {
			rep.SchedulesStarted++
		}
	}

	ongoing, err := e.store.ListSchedulesByStatus(ctx, model.ScheduleOngoing)
	if err != nil {
		return rep, errors.Join(append(errs, fmt.Errorf("list ongoing: %w", err))...)
	}
	for _, sc := range ongoing {
		if !sc.ShouldAutoEnd(now, e.cfg.Location) {
			continue
		}
		got, err := e.CompleteSchedule(ctx, sc.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if got.Status == model.ScheduleCompleted {
			rep.SchedulesCompleted++
		}
	}

	running, err := e.store.ListAttemptsByStatus(ctx, model.AttemptInProgress)
	if err != nil {
		return rep, errors.Join(append(errs, fmt.Errorf("list in-progress attempts: %w", err))...)
	}
	for _, a := range running {
		rem, err := e.TimeRemaining(ctx, a)
		if err != nil {
			errs = append(errs, fmt.Errorf("time remaining of attempt %d: %w", a.ID, err))
			continue
		}
		if rem == nil || *rem > 0 {
			continue
		}
		got, err := e.AutoSubmit(ctx, a.ID, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("auto-submit attempt %d: %w", a.ID, err))
			continue
		}
		if got.Status == model.AttemptAutoSubmitted {
			rep.AttemptsExpired++
		}
	}
	return rep, errors.Join(errs...)
}

// Sweeper runs Sweep on a cron schedule.
type Sweeper struct {
	engine *Engine
	spec   string
	cron   *cron.Cron
}

// NewSweeper creates a sweeper for the cron spec, e.g. "@every 1m".
func NewSweeper(e *Engine, spec string) *Sweeper {
	return &Sweeper{engine: e, spec: spec}
}

// Start schedules the sweep and returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	logger := cronLogger{slog.Default()}
	s.cron = cron.New(
		cron.WithLocation(s.engine.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(s.spec, func() {
		rep, err := s.engine.Sweep(ctx)
		if err != nil {
			slog.Error("sweep failed", "error", err)
		}
		if rep != (SweepReport{}) {
			slog.Info("sweep", "schedules_started", rep.SchedulesStarted,
				"schedules_completed", rep.SchedulesCompleted, "attempts_expired", rep.AttemptsExpired)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("sweep scheduler started", "schedule", s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
