package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanbard/internal/config"
	"kanbard/internal/siyuan"
	logx "kanbard/pkg/logx"
)

// DocStore is the slice of the content store the writer consumes.
type DocStore interface {
	QueryBlocks(ctx context.Context, stmt string) ([]siyuan.Block, error)
	ListNotebooks(ctx context.Context) ([]siyuan.Notebook, error)
	CreateDocWithMarkdown(ctx context.Context, notebookID, path, markdown string) (string, error)
	DeleteBlock(ctx context.Context, id string) error
	AppendBlock(ctx context.Context, parentID, markdown string) ([]string, error)
	SetBlockAttrs(ctx context.Context, id string, attrs map[string]string) error
}

// ErrNoNotebook means the template names no notebook and the store has none
// open to default to.
var ErrNoNotebook = errors.New("no open notebook")

// Settle delays give the store's block index time to catch up after
// structural writes; querying immediately returns stale rows.
const (
	createSettle = 600 * time.Millisecond
	deleteSettle = 300 * time.Millisecond
)

// Writer performs the idempotent replace-write of a synthesized report into
// the content store.
type Writer struct {
	store DocStore
	log   logx.Logger
}

func NewWriter(store DocStore, log logx.Logger) *Writer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{store: store, log: log}
}

// Write locates or creates the target document for the template, removes the
// previous generation of this template's content, appends doc.Body, and tags
// every appended block with the template's stable marker.
//
// Two replace strategies exist. The default deletes blocks carrying the
// marker memo. With AppendMode the document is shared with other content, so
// instead the heading-delimited range matching the report title is removed:
// from the matching heading up to, but not including, the next heading at the
// same or a higher level.
func (w *Writer) Write(ctx context.Context, tpl config.Template, doc Document) (string, error) {
	hpath := BuildPath(tpl, doc.Date)
	docID, err := w.findDoc(ctx, hpath)
	if err != nil {
		return "", err
	}
	created := false
	if docID == "" {
		docID, err = w.createDoc(ctx, tpl, hpath)
		if err != nil {
			return "", err
		}
		created = true
		w.settle(ctx, createSettle)
	}

	marker := "summary-" + tpl.ID
	if !created {
		var stale []string
		if tpl.AppendMode {
			stale, err = w.headingRange(ctx, docID, doc.Title)
		} else {
			stale, err = w.markedBlocks(ctx, docID, marker)
		}
		if err != nil {
			return "", err
		}
		for _, id := range stale {
			if derr := w.store.DeleteBlock(ctx, id); derr != nil {
				w.log.Warn("stale block delete failed", logx.String("block", id), logx.Err(derr))
			}
		}
		if len(stale) > 0 {
			w.settle(ctx, deleteSettle)
		}
	}

	ids, err := w.store.AppendBlock(ctx, docID, doc.Body)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if aerr := w.store.SetBlockAttrs(ctx, id, map[string]string{"memo": marker}); aerr != nil {
			w.log.Warn("marker write failed", logx.String("block", id), logx.Err(aerr))
		}
	}
	w.log.Info("report written",
		logx.String("template", tpl.ID),
		logx.String("doc", docID),
		logx.Int("blocks", len(ids)))
	return docID, nil
}

// findDoc matches the path with and without its leading slash; stored hpaths
// differ between kernel versions.
func (w *Writer) findDoc(ctx context.Context, hpath string) (string, error) {
	alt := strings.TrimPrefix(hpath, "/")
	stmt := fmt.Sprintf("SELECT id FROM blocks WHERE (hpath = '%s' OR hpath = '%s') AND type = 'd' LIMIT 1",
		siyuan.EscapeSQL(hpath), siyuan.EscapeSQL(alt))
	blocks, err := w.store.QueryBlocks(ctx, stmt)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return blocks[0].ID, nil
}

func (w *Writer) createDoc(ctx context.Context, tpl config.Template, hpath string) (string, error) {
	nb := strings.TrimSpace(tpl.NotebookID)
	if nb == "" {
		notebooks, err := w.store.ListNotebooks(ctx)
		if err != nil {
			return "", err
		}
		if len(notebooks) == 0 {
			return "", fmt.Errorf("creating %q: %w", hpath, ErrNoNotebook)
		}
		nb = notebooks[0].ID
	}
	return w.store.CreateDocWithMarkdown(ctx, nb, hpath+".sy", "")
}

func (w *Writer) markedBlocks(ctx context.Context, docID, marker string) ([]string, error) {
	stmt := fmt.Sprintf("SELECT id FROM blocks WHERE root_id = '%s' AND memo = '%s'",
		siyuan.EscapeSQL(docID), siyuan.EscapeSQL(marker))
	blocks, err := w.store.QueryBlocks(ctx, stmt)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, b := range blocks {
		if b.ID != "" && b.ID != docID {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

// headingRange scans the document's root-level blocks in stored order and
// returns the range starting at the heading whose text equals title, ending
// before the next heading at the same or a higher level.
func (w *Writer) headingRange(ctx context.Context, docID, title string) ([]string, error) {
	stmt := fmt.Sprintf("SELECT id, type, subtype, content, sort FROM blocks WHERE parent_id = '%s' ORDER BY sort",
		siyuan.EscapeSQL(docID))
	blocks, err := w.store.QueryBlocks(ctx, stmt)
	if err != nil {
		return nil, err
	}

	var ids []string
	level := 0
	collecting := false
	for _, b := range blocks {
		if b.Type == "h" {
			lv := headingLevel(b.Subtype)
			if collecting && lv > 0 && lv <= level {
				break
			}
			if !collecting && strings.TrimSpace(b.Content) == strings.TrimSpace(title) {
				collecting = true
				level = lv
				ids = append(ids, b.ID)
				continue
			}
		}
		if collecting {
			ids = append(ids, b.ID)
		}
	}
	return ids, nil
}

func headingLevel(subtype string) int {
	if len(subtype) == 2 && subtype[0] == 'h' && subtype[1] >= '1' && subtype[1] <= '6' {
		return int(subtype[1] - '0')
	}
	return 0
}

func (w *Writer) settle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
