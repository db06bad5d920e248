package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kanbard/internal/config"
	logx "kanbard/pkg/logx"
)

// RunFunc executes the archive transition for one due profile.
type RunFunc func(ctx context.Context, profile config.Profile) error

type Config struct {
	Enabled       bool
	CheckInterval time.Duration
	StartupDelay  time.Duration
}

const defaultCheckInterval = time.Minute

// Service drives the recurrence loop: a fixed-interval tick walks all
// profiles, fires the ones whose next slot has passed, and persists the
// advanced schedule state back through the config manager.
//
// Ticks never overlap; a slow run makes the next tick a no-op rather than a
// second concurrent pass over the same profiles.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	log  logx.Logger
	conf *config.Manager
	run  RunFunc

	// now is swappable in tests.
	now func() time.Time

	c       *cron.Cron
	job     cron.Job
	startup *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, conf *config.Manager, run RunFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = cfg.CheckInterval
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		conf: conf,
		run:  run,
		now:  time.Now,
	}
}

// Apply swaps the loop parameters from a config reload. An interval change
// restarts the cron runner; the enabled flag is re-read on every tick so it
// needs no restart.
func (s *Service) Apply(cfg Config) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = cfg.CheckInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	restart := s.c != nil && cfg.CheckInterval != s.cfg.CheckInterval
	s.cfg = cfg
	if restart {
		s.c.Stop()
		s.startCronLocked()
		s.log.Info("tick interval changed", logx.Duration("interval", cfg.CheckInterval))
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.job = cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).
		Then(cron.FuncJob(func() { s.tick(s.ctx) }))
	s.startCronLocked()

	// The first check is deferred so restarts don't immediately replay every
	// profile whose slot elapsed while the daemon was down at full speed.
	job := s.job
	s.startup = time.AfterFunc(s.cfg.StartupDelay, job.Run)

	s.log.Info("service started",
		logx.Duration("interval", s.cfg.CheckInterval),
		logx.Duration("startup_delay", s.cfg.StartupDelay))
}

func (s *Service) startCronLocked() {
	s.c = cron.New()
	s.c.Schedule(cron.Every(s.cfg.CheckInterval), s.job)
	s.c.Start()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	startup := s.startup
	s.startup = nil
	cancel := s.cancel
	s.mu.Unlock()

	if startup != nil {
		startup.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped")
}

// tick runs one pass over all profiles. Profiles run sequentially; a failing
// profile is logged and skipped, it never blocks the others.
func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg := s.conf.Get()
	if cfg == nil || !cfg.Scheduler.Enabled {
		return
	}

	now := s.now()
	updates := map[string]config.Schedule{}

	for _, p := range cfg.Profiles {
		if ctx.Err() != nil {
			break
		}
		if !p.Enabled || !p.Schedule.Enabled {
			continue
		}
		sched := p.Schedule
		spec := specOf(sched)

		// Unset state means the schedule was just created or edited; arm it
		// for the next future slot without firing.
		if sched.NextRunAt <= 0 {
			sched.NextRunAt = Next(spec, now, false).UnixMilli()
			updates[p.ID] = sched
			s.log.Debug("schedule armed",
				logx.String("profile", p.ID),
				logx.Time("next_run", time.UnixMilli(sched.NextRunAt)))
			continue
		}
		if now.UnixMilli() < sched.NextRunAt {
			continue
		}

		s.log.Info("schedule fired",
			logx.String("profile", p.ID),
			logx.String("name", p.Name),
			logx.String("mode", sched.Mode))
		if err := s.run(ctx, p); err != nil {
			s.log.Error("scheduled run failed",
				logx.String("profile", p.ID), logx.Err(err))
		}

		sched.LastRun = now.Format("2006-01-02")
		sched.NextRunAt = Next(spec, now, true).UnixMilli()
		updates[p.ID] = sched
	}

	if len(updates) == 0 {
		return
	}
	err := s.conf.Update(func(c *config.Config) {
		for id, sched := range updates {
			if p := c.FindProfile(id); p != nil {
				p.Schedule = sched
			}
		}
	})
	if err != nil {
		s.log.Error("persisting schedule state failed", logx.Err(err))
	}
}

func specOf(s config.Schedule) Spec {
	return Spec{
		Mode:     s.Mode,
		Time:     s.Time,
		Weekday:  s.Weekday,
		Monthday: s.Monthday,
		Month:    s.Month,
	}
}

// cronLogger adapts logx to cron's logger, used by the overlap guard.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug(msg, logx.String("detail", fmt.Sprint(kv...)))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error(msg, logx.Err(err), logx.String("detail", fmt.Sprint(kv...)))
}
