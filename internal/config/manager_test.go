package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseCurrentSchema(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{
		"version": 2,
		"kernel": {"endpoint": "http://127.0.0.1:6806", "token": "secret"},
		"scheduler": {"enabled": true, "check_interval": "30s"},
		"profiles": [{
			"id": "p1",
			"name": "工作",
			"keyword": "我的工作看板",
			"completedStatus": "已完成",
			"archivedStatus": "归档",
			"enabled": true,
			"schedule": {"enabled": true, "mode": "weekly", "time": "08:30", "weekday": 5}
		}]
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Kernel.Token != "secret" {
		t.Errorf("Kernel.Token = %q", cfg.Kernel.Token)
	}
	if len(cfg.Profiles) != 1 {
		t.Fatalf("Profiles = %d, want 1", len(cfg.Profiles))
	}
	p := cfg.Profiles[0]
	if p.Schedule.Mode != "weekly" || p.Schedule.Time != "08:30" || p.Schedule.Weekday != 5 {
		t.Errorf("schedule not preserved: %+v", p.Schedule)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{
		"version": 2,
		"kernel": {"endpoint": "http://127.0.0.1:6806"},
		"profiles": [{"id": "p1", "name": "x", "keyword": "k", "completedStatus": "done", "archivedStatus": "arch", "enabled": true, "schedule": {"enabled": true}}]
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := cfg.Profiles[0].Schedule
	if s.Mode != "daily" {
		t.Errorf("Mode = %q, want daily", s.Mode)
	}
	if s.Time != "00:00" {
		t.Errorf("Time = %q, want 00:00", s.Time)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{"version":2,"kernel":{"endpoint":"http://x"},"profiles":[]}{"junk":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("Parse accepted concatenated JSON documents")
	}
}

func TestParseRejectsTypeMismatch(t *testing.T) {
	t.Parallel()

	// Fails the strict decode and the legacy fallback alike.
	path := writeConfigFile(t, "config.json", `{"version":2,"kernel":{"endpoint":"http://x"},"profiles":"nope"}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("Parse accepted malformed profiles field")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.yaml", `
version: 2
kernel:
  endpoint: http://127.0.0.1:6806
  rate_per_sec: 4
profiles:
  - id: p1
    name: 工作
    keyword: 我的工作看板
    completedStatus: 已完成
    archivedStatus: 归档
    enabled: true
    schedule:
      enabled: true
      mode: monthly
      time: "07:15"
      monthday: 31
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Kernel.RatePerSec != 4 {
		t.Errorf("RatePerSec = %d, want 4", cfg.Kernel.RatePerSec)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Schedule.Monthday != 31 {
		t.Errorf("profile not decoded: %+v", cfg.Profiles)
	}
}

func TestLoadUpdatePersists(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{
		"version": 2,
		"kernel": {"endpoint": "http://127.0.0.1:6806"},
		"profiles": [{"id": "p1", "name": "x", "keyword": "k", "completedStatus": "done", "archivedStatus": "arch", "enabled": true, "schedule": {"enabled": true, "mode": "daily", "time": "06:00"}}]
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the loaded config")
	}

	err = m.Update(func(c *Config) {
		c.Profiles[0].Schedule.LastRun = "2025-06-11"
		c.Profiles[0].Schedule.NextRunAt = 1760000000000
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The original pointer must not have been mutated in place.
	if cfg.Profiles[0].Schedule.LastRun != "" {
		t.Error("Update mutated the previous snapshot")
	}
	if got := m.Get().Profiles[0].Schedule.LastRun; got != "2025-06-11" {
		t.Errorf("in-memory LastRun = %q", got)
	}

	// Re-parse from disk to verify the write-back.
	reread, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if got := reread.Profiles[0].Schedule.NextRunAt; got != 1760000000000 {
		t.Errorf("persisted NextRunAt = %d", got)
	}
}

func TestUpdateWithoutLoad(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err := m.Update(func(*Config) {}); err == nil {
		t.Fatal("Update succeeded with no config loaded")
	}
}

func TestSaveInitialRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)

	cfg := Bootstrap()
	if err := m.SaveInitial(cfg); err != nil {
		t.Fatalf("SaveInitial: %v", err)
	}
	if m.Get() != cfg {
		t.Error("SaveInitial did not commit the config")
	}

	reread, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse after SaveInitial: %v", err)
	}
	if err := reread.Validate(); err != nil {
		t.Errorf("bootstrapped config invalid: %v", err)
	}
	if len(reread.Profiles) != 1 || reread.Profiles[0].Name != "我的规则" {
		t.Errorf("profiles = %+v", reread.Profiles)
	}
}

func TestPublishDropsOldest(t *testing.T) {
	t.Parallel()

	m := NewManager(filepath.Join(t.TempDir(), "config.json"))
	ch := m.Subscribe(1)

	a := &Config{Version: CurrentVersion, Kernel: KernelConfig{Endpoint: "http://a"}}
	b := &Config{Version: CurrentVersion, Kernel: KernelConfig{Endpoint: "http://b"}}
	m.publish(a)
	m.publish(b)

	got := <-ch
	if got != b {
		t.Errorf("received endpoint %q, want the newest config", got.Kernel.Endpoint)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra config %q", extra.Kernel.Endpoint)
	default:
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	// Publishing after Unsubscribe must not panic.
	m.publish(a)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Version: CurrentVersion,
			Kernel:  KernelConfig{Endpoint: "http://127.0.0.1:6806"},
			Profiles: []Profile{
				{ID: "p1", Name: "a", Keyword: "k", CompletedStatus: "done", ArchivedStatus: "arch", Enabled: true},
				{ID: "p2", Name: "b", Keyword: "k2", CompletedStatus: "done", ArchivedStatus: "arch", Enabled: true},
			},
			Templates: []Template{{ID: "t1", Name: "周报", Period: "week", RuleIDs: []string{"p1", "p2"}}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"missing endpoint", func(c *Config) { c.Kernel.Endpoint = "  " }, "kernel.endpoint"},
		{"missing profile id", func(c *Config) { c.Profiles[0].ID = "" }, "id is required"},
		{"duplicate profile id", func(c *Config) { c.Profiles[1].ID = "p1" }, "duplicate id"},
		{"missing template id", func(c *Config) { c.Templates[0].ID = "" }, "id is required"},
		{"unknown rule id", func(c *Config) { c.Templates[0].RuleIDs = []string{"nope"} }, "unknown rule id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate accepted a broken config")
			}
			if !strings.Contains(err.Error(), tc.substr) {
				t.Errorf("error %q does not mention %q", err, tc.substr)
			}
		})
	}
}
