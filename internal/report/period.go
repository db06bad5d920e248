package report

import (
	"fmt"
	"strings"
	"time"

	"kanbard/internal/config"
)

// PeriodStart returns the inclusive lower bound of the current reporting
// window. Weeks start Monday; day/month/year start at their calendar unit
// boundary. A "none" (or unknown) period has no window and returns the zero
// time.
func PeriodStart(now time.Time, period string) time.Time {
	y, mo, d := now.Date()
	loc := now.Location()
	switch period {
	case "day":
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case "week":
		back := isoWeekday(now) - 1
		start := now.AddDate(0, 0, -back)
		sy, smo, sd := start.Date()
		return time.Date(sy, smo, sd, 0, 0, 0, 0, loc)
	case "month":
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	case "year":
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Time{}
	}
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// FormatDate renders the date stamp used in titles and paths.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// BuildPath produces the human-readable document path for a template run.
// Without a path template the defaults are period-specific Chinese folders;
// with one, each placeholder is substituted once.
func BuildPath(tpl config.Template, now time.Time) string {
	year := now.Year()
	month := fmt.Sprintf("%02d", int(now.Month()))
	_, wk := now.ISOWeek()
	week := fmt.Sprintf("%02d", wk)
	date := FormatDate(now)

	if strings.TrimSpace(tpl.PathTemplate) == "" {
		switch tpl.Period {
		case "week":
			return fmt.Sprintf("/周报/%d/%d-W%s", year, year, week)
		case "month":
			return fmt.Sprintf("/月报/%d/%d-%s", year, year, month)
		case "year":
			return fmt.Sprintf("/年报/%d", year)
		default:
			return fmt.Sprintf("/日常记录/%d/%s/%s", year, month, date)
		}
	}

	p := tpl.PathTemplate
	p = strings.Replace(p, "{YYYY}", fmt.Sprintf("%d", year), 1)
	p = strings.Replace(p, "{MM}", month, 1)
	p = strings.Replace(p, "{date}", date, 1)
	p = strings.Replace(p, "{WW}", week, 1)
	return p
}

// Title substitutes the date into the template's title, falling back to a
// period-specific default.
func Title(tpl config.Template, now time.Time) string {
	t := strings.TrimSpace(tpl.TitleTemplate)
	if t == "" {
		switch tpl.Period {
		case "day":
			t = "日报 ({date})"
		case "week":
			t = "周报 ({date})"
		case "month":
			t = "月报 ({date})"
		case "year":
			t = "年报 ({date})"
		default:
			t = "报表 ({date})"
		}
	}
	return strings.Replace(t, "{date}", FormatDate(now), 1)
}
