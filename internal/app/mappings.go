package app

import (
	"fmt"
	"strings"
	"time"

	"kanbard/internal/config"
	"kanbard/internal/schedule"
	"kanbard/internal/siyuan"
	"kanbard/internal/storage"
	logx "kanbard/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapKernelConfig(cfg *config.Config) (siyuan.Config, error) {
	timeout, err := config.ParseDurationOrDefault("kernel.timeout", cfg.Kernel.Timeout, 30*time.Second)
	if err != nil {
		return siyuan.Config{}, err
	}
	return siyuan.Config{
		Endpoint:   cfg.Kernel.Endpoint,
		Token:      cfg.Kernel.Token,
		Timeout:    timeout,
		RatePerSec: cfg.Kernel.RatePerSec,
	}, nil
}

func mapHistoryConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.History == nil {
		return storage.Config{}, false, nil
	}
	hc := cfg.History
	driver := strings.ToLower(strings.TrimSpace(hc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(hc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("history.path is required when history.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("history.busy_timeout", hc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown history.driver: %s", hc.Driver)
	}
}

func mapSchedulerConfig(cfg *config.Config) (schedule.Config, error) {
	interval, err := config.ParseDurationOrDefault("scheduler.check_interval", cfg.Scheduler.CheckInterval, time.Minute)
	if err != nil {
		return schedule.Config{}, err
	}
	delay, err := config.ParseDurationOrDefault("scheduler.startup_delay", cfg.Scheduler.StartupDelay, interval)
	if err != nil {
		return schedule.Config{}, err
	}
	return schedule.Config{
		Enabled:       cfg.Scheduler.Enabled,
		CheckInterval: interval,
		StartupDelay:  delay,
	}, nil
}
