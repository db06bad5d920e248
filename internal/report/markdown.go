package report

import (
	"html"
	"regexp"
	"strings"
)

var (
	headingRe   = regexp.MustCompile(`^#{3,5}\s+`)
	uncheckedRe = regexp.MustCompile(`^\*\s\[\s\]\s(.*)`)
	checkedRe   = regexp.MustCompile(`(?i)^\*\s\[x\]\s(.*)`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// MDToPlain flattens the generated report markdown into plain text suitable
// for pasting: headings lose their markers, checkbox items become bullets.
func MDToPlain(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		if m := checkedRe.FindStringSubmatch(line); m != nil {
			lines[i] = "• " + m[1]
			continue
		}
		if m := uncheckedRe.FindStringSubmatch(line); m != nil {
			lines[i] = "• " + m[1]
			continue
		}
		lines[i] = headingRe.ReplaceAllString(line, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// MDToHTML renders the report markdown into the minimal list form pasted as
// rich text: h3/h4/h5 headings, checkbox list items, paragraphs.
func MDToHTML(md string) string {
	var b strings.Builder
	b.WriteString("<div>")
	inList := false
	closeList := func() {
		if inList {
			b.WriteString("</ul>")
			inList = false
		}
	}

	for _, line := range strings.Split(md, "\n") {
		switch {
		case strings.HasPrefix(line, "##### "):
			closeList()
			b.WriteString("<h5>" + html.EscapeString(strings.TrimPrefix(line, "##### ")) + "</h5>")
		case strings.HasPrefix(line, "#### "):
			closeList()
			b.WriteString("<h4>" + html.EscapeString(strings.TrimPrefix(line, "#### ")) + "</h4>")
		case strings.HasPrefix(line, "### "):
			closeList()
			b.WriteString("<h3>" + html.EscapeString(strings.TrimPrefix(line, "### ")) + "</h3>")
		default:
			if m := checkedRe.FindStringSubmatch(line); m != nil {
				if !inList {
					b.WriteString("<ul>")
					inList = true
				}
				b.WriteString(`<li><input type="checkbox" checked disabled /> <span>` + html.EscapeString(m[1]) + "</span></li>")
				continue
			}
			if m := uncheckedRe.FindStringSubmatch(line); m != nil {
				if !inList {
					b.WriteString("<ul>")
					inList = true
				}
				b.WriteString(`<li><input type="checkbox" disabled /> <span>` + html.EscapeString(m[1]) + "</span></li>")
				continue
			}
			if strings.TrimSpace(line) == "" {
				closeList()
				continue
			}
			closeList()
			b.WriteString("<p>" + html.EscapeString(line) + "</p>")
		}
	}
	closeList()
	b.WriteString("</div>")
	return b.String()
}

// StripToSections removes the report and board headings, keeping only
// section headings and items. Used for clipboard payloads when the template
// asks for sections only.
func StripToSections(body string) string {
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "### ") || strings.HasPrefix(line, "#### ") {
			continue
		}
		kept = append(kept, line)
	}
	out := blankRunsRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
