package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"kanbard/internal/archive"
	"kanbard/internal/config"
	"kanbard/internal/notify"
	"kanbard/internal/report"
	"kanbard/internal/runtime/supervisor"
	"kanbard/internal/schedule"
	"kanbard/internal/siyuan"
	"kanbard/internal/storage"
	logx "kanbard/pkg/logx"
)

// App wires the daemon together: config manager, kernel client, archive
// engine, report pipeline, and the recurrence loop.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	client *siyuan.Client
	hist   storage.Store

	engine *archive.Engine
	synth  *report.Synthesizer
	writer *report.Writer
	clip   report.ClipboardSink
	sched  *schedule.Service

	notifyMu sync.RWMutex
	sinks    notify.Fanout
}

// NewApp loads (or bootstraps) the config file at cfgPath and builds all
// services. Nothing runs until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if os.IsNotExist(err) {
		cfg = config.Bootstrap()
		if serr := cfgm.SaveInitial(cfg); serr != nil {
			return nil, fmt.Errorf("writing initial config: %w", serr)
		}
	} else if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	kcfg, err := mapKernelConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := siyuan.New(kcfg, log.With(logx.String("comp", "kernel")))
	if err != nil {
		return nil, err
	}

	// History (optional)
	var hist storage.Store
	if hc, enabled, err := mapHistoryConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(hc, log.With(logx.String("comp", "history")))
		if err != nil {
			return nil, err
		}
		hist = st
		log.Info("history enabled", logx.String("driver", hc.Driver))
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		client:  client,
		hist:    hist,
	}
	a.sinks = a.buildSinks(cfg)

	a.engine = archive.New(client, hist, log.With(logx.String("comp", "archive")))
	a.synth = report.NewSynthesizer(client, log.With(logx.String("comp", "report")))
	a.writer = report.NewWriter(client, log.With(logx.String("comp", "report")))
	a.clip = report.SystemClipboard{Log: log.With(logx.String("comp", "clipboard"))}

	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.sched = schedule.New(scfg, cfgm, a.runScheduled, log.With(logx.String("comp", "schedule")))

	return a, nil
}

// buildSinks assembles the notification fan-out for the given config. The log
// sink is always present.
func (a *App) buildSinks(cfg *config.Config) notify.Fanout {
	sinks := notify.Fanout{notify.LogSink{Log: a.log.With(logx.String("comp", "notify"))}}
	if cfg.Notify.Store {
		sinks = append(sinks, notify.StoreSink{
			Client: a.client,
			Log:    a.log.With(logx.String("comp", "notify")),
		})
	}
	if tg := cfg.Notify.Telegram; tg != nil && tg.Enabled {
		sink, err := notify.NewTelegram(*tg, a.log.With(logx.String("comp", "notify.telegram")))
		if err != nil {
			a.log.Warn("telegram notifications unavailable", logx.Err(err))
		} else {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (a *App) notify() notify.Fanout {
	a.notifyMu.RLock()
	defer a.notifyMu.RUnlock()
	return a.sinks
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := mapKernelConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapHistoryConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	a.sched.Start(a.sup.Context())

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs, profilesChanged := config.SummarizeChange(lastApplied, newCfg)
				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Debug("config change summary", fields...)
					if len(profilesChanged) > 0 {
						a.log.Debug("profile changes detected", logx.Any("profiles", profilesChanged))
					}
				} else {
					a.log.Debug("config reload received, but no effective changes detected")
				}
				lastApplied = newCfg

				a.applyReload(sections, newCfg)
			}
		}
	})

	a.log.Info("daemon started", logx.String("config", a.cfgPath))
	return nil
}

// applyReload pushes a committed config into the live services. Kernel and
// history connections are built once at boot; changes there only warn.
func (a *App) applyReload(sections []string, cfg *config.Config) {
	for _, s := range sections {
		switch s {
		case "kernel":
			a.log.Warn("kernel config changed; restart required for changes to take effect")
		case "history":
			a.log.Warn("history config changed; restart required for changes to take effect")
		}
	}

	a.logs.Apply(mapLoggingConfig(cfg))

	if scfg, err := mapSchedulerConfig(cfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(scfg)
	}

	sinks := a.buildSinks(cfg)
	a.notifyMu.Lock()
	a.sinks = sinks
	a.notifyMu.Unlock()
}

func (a *App) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a.sched.Stop(stopCtx)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(stopCtx)
	}
	if a.hist != nil {
		if cerr := a.hist.Close(); cerr != nil {
			a.log.Warn("closing history failed", logx.Err(cerr))
		}
	}
	a.log.Info("daemon stopped")
	if lerr := a.logs.Close(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
