// Package status matches free-form board status labels against configured
// report sections. Matching is deliberately fuzzy: board authors mix emoji,
// case, comma-joined multi-values and partial labels.
package status

import (
	"strings"
	"unicode"
)

// Section is one classification bucket. Run Prepare over the slice so the
// normalized forms are computed once per run, not per row.
type Section struct {
	ID         string
	Title      string
	Raw        []string
	Normalized []string
}

// Prepare fills in the normalized target statuses.
func Prepare(sections []Section) []Section {
	for i := range sections {
		sections[i].Normalized = sections[i].Normalized[:0]
		for _, raw := range sections[i].Raw {
			if n := Normalize(raw); n != "" {
				sections[i].Normalized = append(sections[i].Normalized, n)
			}
		}
	}
	return sections
}

// Classify returns the indexes of every section the status matches.
// Normalized containment (either direction, including comma-token overlap)
// is tried first; when it yields nothing, a raw case-insensitive substring
// pass against the un-normalized targets runs as a fallback.
//
// Multi-match is intentional here: report rows land in every matched
// section. The transition engine, by contrast, stops at its first match.
func Classify(status string, sections []Section) []int {
	sl := Normalize(status)
	tokens := splitTokens(sl)

	var matched []int
	for i, sec := range sections {
		if len(sec.Normalized) == 0 {
			continue
		}
		for _, st := range sec.Normalized {
			if matchNormalized(sl, tokens, st) {
				matched = append(matched, i)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}

	// Raw fallback: some boards encode status purely in emoji or punctuation
	// that normalization strips away.
	sraw := strings.ToLower(status)
	if strings.TrimSpace(sraw) == "" {
		return nil
	}
	for i, sec := range sections {
		for _, raw := range sec.Raw {
			stl := strings.ToLower(raw)
			if stl == "" {
				continue
			}
			if strings.Contains(sraw, stl) || strings.Contains(stl, sraw) {
				matched = append(matched, i)
				break
			}
		}
	}
	return matched
}

func matchNormalized(sl string, tokens []string, target string) bool {
	if target == "" {
		return false
	}
	if strings.Contains(sl, target) {
		return true
	}
	for _, tok := range tokens {
		if strings.Contains(tok, target) || strings.Contains(target, tok) {
			return true
		}
	}
	return false
}

func splitTokens(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' })
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Normalize strips pictographic runes, lowercases and trims.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(StripEmoji(s)))
}

// pictographic covers the common emoji/pictograph blocks board authors use
// in status labels (misc symbols, dingbats, variation selectors, the
// supplementary pictographic planes and regional indicators).
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x203C, Hi: 0x2049, Stride: 1},
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1},
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1},
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1},
	},
}

// StripEmoji removes pictographic code points, keeping all text intact.
func StripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(pictographic, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Done-like and archived-like are fixed keyword sets used only for
// period-window filtering; they are independent of configured sections.
var (
	doneKeywords     = []string{"已完成", "done", "完成", "finish", "ok"}
	archivedKeywords = []string{"归档", "archived", "存档", "archive"}
)

// IsDoneLike reports whether a normalized status reads as completed.
func IsDoneLike(normalized string) bool {
	return containsAny(normalized, doneKeywords)
}

// IsArchivedLike reports whether a normalized status reads as archived.
func IsArchivedLike(normalized string) bool {
	return containsAny(normalized, archivedKeywords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
