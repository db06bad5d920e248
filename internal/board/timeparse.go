package board

import (
	"strconv"
	"strings"
	"time"
)

// ResolveTime turns a board-provided timestamp string into epoch ms.
// Supported forms, in order: an ISO-date prefix (date at local midnight), the
// store's 14-digit compact datetime, a 10-digit unix-seconds value, a bare
// millisecond count, and finally anything time.Parse understands. Returns 0
// when nothing applies.
func ResolveTime(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	if isoDatePrefixed(s) {
		t, err := time.ParseInLocation("2006-01-02", s[:10], time.Local)
		if err == nil {
			return t.UnixMilli()
		}
	}

	if len(s) == 14 && allDigits(s) {
		t, err := time.ParseInLocation("20060102150405", s, time.Local)
		if err == nil {
			return t.UnixMilli()
		}
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if len(s) == 10 {
			return v * 1000
		}
		return v
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func isoDatePrefixed(s string) bool {
	if len(s) < 10 {
		return false
	}
	for i, r := range s[:10] {
		if i == 4 || i == 7 {
			if r != '-' {
				return false
			}
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
