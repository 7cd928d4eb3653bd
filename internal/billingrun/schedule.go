package billingrun

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires runs on the configured cron schedule. A run that is still
// going when the next one is due makes the next one skip.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	runner *Runner
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(cfg Config, runner *Runner, log *zap.Logger) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	loc, err := cfg.location()
	if err != nil {
		return nil, fmt.Errorf("billing run time zone %q: %w", cfg.TimeZone, err)
	}
	log = log.Named("billingrun.scheduler")

	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{log: log, cfg: cfg, runner: runner, cron: c, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(cfg.Schedule, func() { s.run(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("billing run schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins firing runs. Runs in flight are cancelled by Stop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("billing runs scheduled",
		zap.String("schedule", s.cfg.Schedule),
		zap.String("time_zone", s.cfg.TimeZone),
		zap.Bool("run_on_start", s.cfg.RunOnStart),
	)
	if s.cfg.RunOnStart {
		go s.run(s.ctx)
	}
}

// Stop stops the schedule and waits for a running run to return or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	fields := []zap.Field{
		zap.String("run_id", summary.RunID),
		zap.Int("computed", summary.Computed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	}
	if err != nil {
		s.log.Error("billing run incomplete", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("billing run complete", fields...)
}
