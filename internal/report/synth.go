package report

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"kanbard/internal/board"
	"kanbard/internal/config"
	"kanbard/internal/status"
	logx "kanbard/pkg/logx"
)

// ErrNoBoards means no profile referenced by the template resolved to a
// board. Surfaced to the user as an informational condition, not a crash.
var ErrNoBoards = errors.New("no boards resolved for template")

// renderPageSize is large enough to cover any realistic board in one page.
const renderPageSize = 2000

// Synthesizer turns classified board rows into one markdown report.
type Synthesizer struct {
	store board.Store
	log   logx.Logger
	now   func() time.Time
}

func NewSynthesizer(store board.Store, log logx.Logger) *Synthesizer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Synthesizer{store: store, log: log, now: time.Now}
}

// Document is one synthesized report.
type Document struct {
	Title string
	Body  string // emoji-stripped markdown
	Date  time.Time

	Boards int // boards that resolved
	Items  int // lines placed into sections
}

var (
	// Week reports drop per-task hour annotations like "3h" or "(1.5h)".
	hourSuffixRe = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*h\b`)
	hourParenRe  = regexp.MustCompile(`(?i)\((?:\d\.?)+h\)`)
)

// Synthesize builds the report for one template against the current config.
//
// Per referenced profile: resolve the board, render all rows, normalize,
// classify against the template's sections, and period-filter done-like and
// archived-like rows to the current window. Rows in other statuses are never
// time-filtered; a stale "In Progress" row stays visible until it is closed.
func (s *Synthesizer) Synthesize(ctx context.Context, tpl config.Template, cfg *config.Config) (Document, error) {
	now := s.now()
	doc := Document{Date: now, Title: Title(tpl, now)}

	if len(tpl.RuleIDs) == 0 {
		return doc, ErrNoBoards
	}

	sections := make([]status.Section, 0, len(tpl.Sections))
	for _, sec := range tpl.Sections {
		sections = append(sections, status.Section{ID: sec.ID, Title: sec.Title, Raw: sec.Statuses})
	}
	sections = status.Prepare(sections)

	var candidates []string
	for _, sec := range sections {
		candidates = append(candidates, sec.Normalized...)
	}

	periodStartMS := int64(0)
	if tpl.Period != "" && tpl.Period != "none" {
		periodStartMS = PeriodStart(now, tpl.Period).UnixMilli()
	}

	var b strings.Builder
	b.WriteString("### " + doc.Title + "\n\n")

	for _, pid := range tpl.RuleIDs {
		p := cfg.FindProfile(pid)
		if p == nil {
			continue
		}
		ref, err := board.Resolve(ctx, s.store, p.Keyword)
		if errors.Is(err, board.ErrNotFound) {
			s.log.Info("board not found for report", logx.String("profile", pid))
			continue
		}
		if err != nil {
			return doc, err
		}
		view, err := s.store.RenderAttributeView(ctx, ref.BoardID, ref.ViewID, renderPageSize, 1)
		if err != nil {
			s.log.Warn("render failed, skipping board",
				logx.String("profile", pid), logx.Err(err))
			continue
		}

		cols := board.ExtractColumns(view)
		roles := board.InferRoles(cols)
		rows, err := board.Normalize(ctx, s.store, view, cols, board.Options{StatusCandidates: candidates})
		if err != nil {
			s.log.Warn("normalize failed, skipping board",
				logx.String("profile", pid), logx.Err(err))
			continue
		}
		doc.Boards++

		items := make([][]string, len(sections))
		for _, row := range rows {
			text := row.Text
			if tpl.Period == "week" {
				text = cleanWeekText(text, row, roles.Content)
			}

			ts := row.Timestamp
			if ts == 0 && (tpl.Period == "" || tpl.Period == "none") {
				ts = now.UnixMilli()
			}

			norm := status.Normalize(row.Status)
			doneLike := status.IsDoneLike(norm)
			archivedLike := status.IsArchivedLike(norm)
			if periodStartMS > 0 && (doneLike || archivedLike) && ts < periodStartMS {
				continue
			}

			matched := status.Classify(row.Status, sections)
			if len(matched) == 0 {
				continue
			}
			line := "* [ ] " + text
			if doneLike {
				line = "* [x] " + text
			}
			line = strings.TrimSpace(line)
			for _, idx := range matched {
				items[idx] = append(items[idx], line)
				doc.Items++
			}
		}

		name := p.Name
		if name == "" {
			name = p.Keyword
		}
		b.WriteString("#### 看板: " + name + "\n\n")
		for i, sec := range sections {
			b.WriteString("##### " + sec.Title + "\n")
			if len(items[i]) > 0 {
				b.WriteString(strings.Join(items[i], "\n") + "\n\n")
			} else {
				b.WriteString("\n")
			}
		}
	}

	if doc.Boards == 0 {
		return doc, ErrNoBoards
	}
	doc.Body = status.StripEmoji(b.String())
	return doc, nil
}

// cleanWeekText strips hour annotations from a task line. When that leaves
// nothing, the content cell's parts are re-joined so the row keeps a label.
func cleanWeekText(text string, row board.Row, contentIdx int) string {
	out := hourSuffixRe.ReplaceAllString(text, "")
	out = hourParenRe.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	if out != "" {
		return out
	}
	if contentIdx >= 0 && contentIdx < len(row.Cells) {
		if parts, ok := row.Cells[contentIdx].([]any); ok && len(parts) > 0 {
			vals := make([]string, 0, len(parts))
			for _, part := range parts {
				if v := board.ExtractCellValue(part); v != "" {
					vals = append(vals, v)
				}
			}
			if len(vals) > 0 {
				return strings.Join(vals, ", ")
			}
		}
	}
	return out
}
