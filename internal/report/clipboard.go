package report

import (
	"github.com/atotto/clipboard"

	"kanbard/internal/config"
	logx "kanbard/pkg/logx"
)

// ClipboardSink receives the rendered report copy. The HTML form is the
// minimal list rendering; sinks that only take plain text may ignore it.
type ClipboardSink interface {
	WriteClipboard(plain, html string) error
}

// ClipboardPayload renders the copy-paste forms of a report body, honoring
// the template's sections-only flag.
func ClipboardPayload(tpl config.Template, body string) (plain, html string) {
	if tpl.ClipboardOnlySections {
		body = StripToSections(body)
	}
	return MDToPlain(body), MDToHTML(body)
}

// SystemClipboard writes to the host clipboard. The clipboard tool chain
// only transports plain text; the HTML form is dropped here.
type SystemClipboard struct {
	Log logx.Logger
}

func (s SystemClipboard) WriteClipboard(plain, html string) error {
	_ = html
	if err := clipboard.WriteAll(plain); err != nil {
		return err
	}
	if !s.Log.IsZero() {
		s.Log.Debug("report copied to clipboard", logx.Int("chars", len(plain)))
	}
	return nil
}
