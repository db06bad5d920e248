package board

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound means the keyword matched no document, the document holds no
// attribute-view block, or the block's markup carries no board id. All are
// non-fatal: callers treat it as "no rows for this profile" and move on.
var ErrNotFound = errors.New("board not found")

var (
	avIDRe   = regexp.MustCompile(`data-av-id="([^"]+)"`)
	viewIDRe = regexp.MustCompile(`data-view-id="([^"]+)"`)
)

// Resolve locates the board referenced by keyword: first document whose
// content contains it, that document's first attribute-view block, and the
// board/view ids parsed out of the block's serialized markup. The view id
// defaults to the board id when the markup doesn't carry one.
func Resolve(ctx context.Context, store Store, keyword string) (Ref, error) {
	doc, ok, err := store.FindDocumentByContent(ctx, keyword)
	if err != nil {
		return Ref{}, err
	}
	if !ok {
		return Ref{}, ErrNotFound
	}

	avBlock, ok, err := store.FirstChildOfType(ctx, doc.ID, "av")
	if err != nil {
		return Ref{}, err
	}
	if !ok {
		return Ref{}, ErrNotFound
	}

	m := avIDRe.FindStringSubmatch(avBlock.Markdown)
	if m == nil {
		return Ref{}, ErrNotFound
	}
	ref := Ref{BoardID: m[1], ViewID: m[1]}
	if vm := viewIDRe.FindStringSubmatch(avBlock.Markdown); vm != nil {
		ref.ViewID = vm[1]
	}
	return ref, nil
}
