package config

import (
	"reflect"
	"sort"
	"strings"

	logx "kanbard/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) the ids of profiles whose rule or schedule changed.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Kernel (never log token)
	if strings.TrimSpace(oldCfg.Kernel.Endpoint) != strings.TrimSpace(newCfg.Kernel.Endpoint) ||
		strings.TrimSpace(oldCfg.Kernel.Timeout) != strings.TrimSpace(newCfg.Kernel.Timeout) ||
		oldCfg.Kernel.RatePerSec != newCfg.Kernel.RatePerSec ||
		(strings.TrimSpace(oldCfg.Kernel.Token) != "") != (strings.TrimSpace(newCfg.Kernel.Token) != "") {
		changed = append(changed, "kernel")
		attrs = append(attrs,
			logx.String("kernel.endpoint", strings.TrimSpace(newCfg.Kernel.Endpoint)),
			logx.Bool("kernel.token_set", strings.TrimSpace(newCfg.Kernel.Token) != ""),
			logx.Int("kernel.rate_per_sec", newCfg.Kernel.RatePerSec),
		)
	}

	// Scheduler
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.check_interval", strings.TrimSpace(newCfg.Scheduler.CheckInterval)),
		)
	}

	// Notify (never log telegram token)
	if notifyChanged(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.store", newCfg.Notify.Store),
			logx.Bool("notify.telegram", newCfg.Notify.Telegram != nil && newCfg.Notify.Telegram.Enabled),
		)
	}

	// History (persistence). Nil means disabled.
	var oDriver, nDriver string
	var oPathSet, nPathSet bool
	if oldCfg.History != nil {
		oDriver = strings.TrimSpace(oldCfg.History.Driver)
		oPathSet = strings.TrimSpace(oldCfg.History.Path) != ""
	}
	if newCfg.History != nil {
		nDriver = strings.TrimSpace(newCfg.History.Driver)
		nPathSet = strings.TrimSpace(newCfg.History.Path) != ""
	}
	if oDriver != nDriver || oPathSet != nPathSet {
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.String("history.driver", nDriver),
			logx.Bool("history.path_set", nPathSet),
		)
	}

	// Profiles (summarize only; details at debug)
	profileChanged := diffProfiles(oldCfg.Profiles, newCfg.Profiles)
	if len(profileChanged) > 0 {
		changed = append(changed, "profiles")
		attrs = append(attrs,
			logx.Int("profiles.changed_count", len(profileChanged)),
			logx.Int("profiles.enabled_count", countEnabled(newCfg.Profiles)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Templates, newCfg.Templates) {
		changed = append(changed, "templates")
		attrs = append(attrs, logx.Int("templates.count", len(newCfg.Templates)))
	}

	sort.Strings(changed)
	return changed, attrs, profileChanged
}

func notifyChanged(o, n NotifyConfig) bool {
	if o.Store != n.Store {
		return true
	}
	ot, nt := o.Telegram, n.Telegram
	if (ot == nil) != (nt == nil) {
		return true
	}
	if ot == nil {
		return false
	}
	return ot.Enabled != nt.Enabled ||
		ot.ChatID != nt.ChatID ||
		ot.RatePerSec != nt.RatePerSec ||
		(strings.TrimSpace(ot.Token) != "") != (strings.TrimSpace(nt.Token) != "")
}

func countEnabled(ps []Profile) int {
	n := 0
	for _, p := range ps {
		if p.Enabled {
			n++
		}
	}
	return n
}

func diffProfiles(oldPs, newPs []Profile) []string {
	oldM := map[string]Profile{}
	for _, p := range oldPs {
		oldM[p.ID] = p
	}
	newM := map[string]Profile{}
	for _, p := range newPs {
		newM[p.ID] = p
	}

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		o, oOK := oldM[id]
		n, nOK := newM[id]
		if oOK != nOK || !reflect.DeepEqual(o, n) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
