package config

import (
	"fmt"
	"strings"
)

// CurrentVersion is the config schema version written by this build.
// Version 0/1 files (the flat single-rule layout) are upgraded on load,
// see migrate.go.
const CurrentVersion = 2

type Config struct {
	Version int `json:"version,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Kernel    KernelConfig    `json:"kernel"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	History   *HistoryConfig  `json:"history,omitempty"`

	Profiles  []Profile  `json:"profiles"`
	Templates []Template `json:"templates,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// KernelConfig points at the content store's kernel API.
//
// RatePerSec throttles outgoing API calls; the store serializes attribute-view
// writes internally and responds badly to bursts.
type KernelConfig struct {
	Endpoint   string `json:"endpoint"`
	Token      string `json:"token,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // Go duration string, default "30s"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// SchedulerConfig controls the recurrence check loop.
//
// CheckInterval is a Go duration string; the default is "1m". StartupDelay
// postpones the first catch-up check so the daemon doesn't hammer the store
// right after boot.
type SchedulerConfig struct {
	Enabled       bool   `json:"enabled"`
	CheckInterval string `json:"check_interval,omitempty"`
	StartupDelay  string `json:"startup_delay,omitempty"`
}

// NotifyConfig controls where user-facing notifications go.
// The store channel surfaces messages in the content store UI; the Telegram
// channel is for headless deployments where nobody is watching that UI.
type NotifyConfig struct {
	Store    bool                  `json:"store"`
	Telegram *TelegramNotifyConfig `json:"telegram,omitempty"`
}

type TelegramNotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// HistoryConfig controls the undo/audit persistence layer.
//
// Example:
//
//	"history": { "driver": "file", "path": "./kanbard_history" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Profile binds a board (found by keyword) to one completed→archived
// transition and a recurrence schedule.
type Profile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Keyword         string   `json:"keyword"`
	CompletedStatus string   `json:"completedStatus"`
	ArchivedStatus  string   `json:"archivedStatus"`
	Enabled         bool     `json:"enabled"`
	Schedule        Schedule `json:"schedule"`
}

// Schedule describes one recurrence rule. Weekday uses 1=Monday..7=Sunday.
// Monthday is clamped to the length of the target month at computation time.
//
// LastRun and NextRunAt are runtime state persisted back into the config file
// after each fire.
type Schedule struct {
	Enabled   bool   `json:"enabled"`
	Mode      string `json:"mode,omitempty"` // daily|workday|weekly|monthly|yearly
	Time      string `json:"time,omitempty"` // HH:MM
	Weekday   int    `json:"weekday,omitempty"`
	Monthday  int    `json:"monthday,omitempty"`
	Month     int    `json:"month,omitempty"`
	LastRun   string `json:"lastRun,omitempty"`   // YYYY-MM-DD
	NextRunAt int64  `json:"nextRunAt,omitempty"` // epoch ms
}

// Template describes one generated report document.
type Template struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Period                string    `json:"period,omitempty"` // none|day|week|month|year
	RuleIDs               []string  `json:"ruleIds,omitempty"`
	NotebookID            string    `json:"notebookId,omitempty"`
	PathTemplate          string    `json:"pathTemplate,omitempty"`
	TitleTemplate         string    `json:"titleTemplate,omitempty"`
	AppendMode            bool      `json:"appendMode,omitempty"`
	ClipboardOnlySections bool      `json:"clipboardOnlySections,omitempty"`
	Sections              []Section `json:"sections"`
}

// Section is one report bucket; Statuses are the raw labels it collects.
type Section struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Statuses []string `json:"statuses"`
}

// Validate rejects configs that cannot run at all. Per-profile problems are
// soft (the scheduler skips broken profiles); only structural issues fail.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Kernel.Endpoint) == "" {
		return fmt.Errorf("kernel.endpoint is required")
	}
	seen := map[string]bool{}
	for i, p := range c.Profiles {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("profiles[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("profiles[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	for i, t := range c.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("templates[%d]: id is required", i)
		}
		for _, rid := range t.RuleIDs {
			if !seen[rid] {
				return fmt.Errorf("templates[%d]: unknown rule id %q", i, rid)
			}
		}
	}
	return nil
}

// FindProfile returns the profile with the given id, or nil.
func (c *Config) FindProfile(id string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].ID == id {
			return &c.Profiles[i]
		}
	}
	return nil
}

// FindTemplate returns the template with the given id, or nil.
func (c *Config) FindTemplate(id string) *Template {
	for i := range c.Templates {
		if c.Templates[i].ID == id {
			return &c.Templates[i]
		}
	}
	return nil
}
