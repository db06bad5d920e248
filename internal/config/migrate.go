package config

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// legacyConfig is the flat pre-v2 layout: one implicit rule described by
// top-level fields, plus an optional profiles list without per-profile
// schedules (a single global archiveTime/lastRunDate drove all of them).
//
// It exists only inside the upgrade path; steady-state code never sees it.
type legacyConfig struct {
	Version int `json:"version,omitempty"`

	Logging   LoggingConfig   `json:"logging,omitempty"`
	Kernel    KernelConfig    `json:"kernel,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	History   *HistoryConfig  `json:"history,omitempty"`

	Profiles  []legacyProfile `json:"profiles,omitempty"`
	Templates []Template      `json:"templates,omitempty"`

	KanbanKeyword   string `json:"kanbanKeyword,omitempty"`
	CompletedStatus string `json:"completedStatus,omitempty"`
	ArchivedStatus  string `json:"archivedStatus,omitempty"`
	ArchiveTime     string `json:"archiveTime,omitempty"`
	LastRunDate     string `json:"lastRunDate,omitempty"`
}

type legacyProfile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Keyword         string    `json:"keyword"`
	CompletedStatus string    `json:"completedStatus"`
	ArchivedStatus  string    `json:"archivedStatus"`
	Enabled         *bool     `json:"enabled,omitempty"`
	Schedule        *Schedule `json:"schedule,omitempty"`
}

// upgradeLegacy converts a pre-v2 config document into the current shape.
// Runs once at load; the result is written back on the next Save.
func upgradeLegacy(jsonBytes []byte) (*Config, error) {
	var old legacyConfig
	if err := json.Unmarshal(jsonBytes, &old); err != nil {
		return nil, fmt.Errorf("legacy config: %w", err)
	}

	cfg := &Config{
		Version:   CurrentVersion,
		Logging:   old.Logging,
		Kernel:    old.Kernel,
		Scheduler: old.Scheduler,
		Notify:    old.Notify,
		History:   old.History,
		Templates: old.Templates,
	}

	globalSched := Schedule{
		Enabled: true,
		Mode:    "daily",
		Time:    old.ArchiveTime,
		LastRun: old.LastRunDate,
	}

	for _, lp := range old.Profiles {
		p := Profile{
			ID:              lp.ID,
			Name:            lp.Name,
			Keyword:         lp.Keyword,
			CompletedStatus: lp.CompletedStatus,
			ArchivedStatus:  lp.ArchivedStatus,
			Enabled:         lp.Enabled == nil || *lp.Enabled,
		}
		if lp.Schedule != nil {
			p.Schedule = *lp.Schedule
		} else {
			p.Schedule = globalSched
		}
		if p.ID == "" {
			p.ID = NewID()
		}
		cfg.Profiles = append(cfg.Profiles, p)
	}

	// Flat single-rule fields fold into a first profile when none exist.
	if len(cfg.Profiles) == 0 && (old.KanbanKeyword != "" || old.CompletedStatus != "") {
		cfg.Profiles = append(cfg.Profiles, Profile{
			ID:              NewID(),
			Name:            "默认规则",
			Keyword:         orDefault(old.KanbanKeyword, "我的工作看板"),
			CompletedStatus: orDefault(old.CompletedStatus, "已完成"),
			ArchivedStatus:  orDefault(old.ArchivedStatus, "归档"),
			Enabled:         true,
			Schedule:        globalSched,
		})
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Bootstrap builds the new-install default config.
func Bootstrap() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Logging: LoggingConfig{Level: "info", Console: true},
		Kernel:  KernelConfig{Endpoint: "http://127.0.0.1:6806"},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{Store: true},
		Profiles: []Profile{{
			ID:              NewID(),
			Name:            "我的规则",
			Keyword:         "我的工作看板",
			CompletedStatus: "已完成",
			ArchivedStatus:  "归档",
			Enabled:         true,
			Schedule: Schedule{
				Enabled: true,
				Mode:    "daily",
				Time:    "00:00",
			},
		}},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Kernel.Endpoint == "" {
		cfg.Kernel.Endpoint = "http://127.0.0.1:6806"
	}
	for i := range cfg.Profiles {
		s := &cfg.Profiles[i].Schedule
		if s.Mode == "" {
			s.Mode = "daily"
		}
		if s.Time == "" {
			s.Time = "00:00"
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NewID returns a random 128-bit hex id for profiles/templates.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("t-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
