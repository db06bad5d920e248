package archive

import (
	"context"
	"errors"
	"testing"

	"kanbard/internal/config"
	"kanbard/internal/siyuan"
	"kanbard/internal/storage"
	logx "kanbard/pkg/logx"
)

type write struct {
	avID   string
	keyID  string
	itemID string
	value  any
}

type fakeBoard struct {
	docFound bool
	avBlock  siyuan.Block
	avFound  bool
	keys     []siyuan.AttrViewKey
	view     siyuan.RenderedView
	// viewsByID overrides the render payload for specific view ids.
	viewsByID map[string]siyuan.RenderedView

	failWrites map[string]bool
	writes     []write
	rendered   []string
}

func (f *fakeBoard) FindDocumentByContent(ctx context.Context, keyword string) (siyuan.Block, bool, error) {
	return siyuan.Block{ID: "doc1"}, f.docFound, nil
}

func (f *fakeBoard) FirstChildOfType(ctx context.Context, rootID, typ string) (siyuan.Block, bool, error) {
	return f.avBlock, f.avFound, nil
}

func (f *fakeBoard) AttributeViewKeys(ctx context.Context, avID string) ([]siyuan.AttrViewKey, error) {
	return f.keys, nil
}

func (f *fakeBoard) RenderAttributeView(ctx context.Context, avID, viewID string, pageSize, page int) (siyuan.RenderedView, error) {
	f.rendered = append(f.rendered, viewID)
	if v, ok := f.viewsByID[viewID]; ok {
		return v, nil
	}
	return f.view, nil
}

func (f *fakeBoard) BlockContents(ctx context.Context, ids []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeBoard) SetAttributeViewBlockAttr(ctx context.Context, avID, keyID, itemID string, value any) error {
	if f.failWrites[itemID] {
		return errors.New("write rejected")
	}
	f.writes = append(f.writes, write{avID: avID, keyID: keyID, itemID: itemID, value: value})
	return nil
}

type fakeHist struct {
	pushed []storage.UndoRecord
	popped []storage.UndoRecord
	audits []storage.AuditEntry
}

func (h *fakeHist) PushUndo(ctx context.Context, rec storage.UndoRecord) error {
	h.pushed = append(h.pushed, rec)
	return nil
}

func (h *fakeHist) PopUndo(ctx context.Context) (storage.UndoRecord, bool, error) {
	if len(h.popped) == 0 {
		return storage.UndoRecord{}, false, nil
	}
	rec := h.popped[len(h.popped)-1]
	h.popped = h.popped[:len(h.popped)-1]
	return rec, true, nil
}

func (h *fakeHist) UndoDepth(ctx context.Context) (int, error) { return len(h.popped), nil }

func (h *fakeHist) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	h.audits = append(h.audits, e)
	return nil
}

func (h *fakeHist) Close() error { return nil }

func statusKeys() []siyuan.AttrViewKey {
	return []siyuan.AttrViewKey{
		{ID: "key-content", Name: "内容", Type: "block"},
		{ID: "key-status", Name: "状态", Type: "select", Options: []siyuan.KeyOption{
			{Name: "进行中", Color: "1"},
			{Name: "已完成", Color: "2"},
			{Name: "已归档", Color: "3"},
		}},
	}
}

func boardView(rows ...map[string]any) siyuan.RenderedView {
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, r)
	}
	return map[string]any{"view": map[string]any{"rows": items}}
}

func boardRow(id, text, status string) map[string]any {
	return map[string]any{
		"id": id,
		"cells": []any{
			map[string]any{"block": map[string]any{"content": text}},
			map[string]any{"mSelect": []any{map[string]any{"content": status}}},
		},
	}
}

func testProfile() config.Profile {
	return config.Profile{
		ID:              "p1",
		Name:            "工作看板",
		Keyword:         "工作看板",
		CompletedStatus: "已完成",
		ArchivedStatus:  "已归档",
		Enabled:         true,
	}
}

func readyBoard(rows ...map[string]any) *fakeBoard {
	return &fakeBoard{
		docFound: true,
		avBlock:  siyuan.Block{ID: "blk1", Markdown: `<div data-av-id="av1"></div>`},
		avFound:  true,
		keys:     statusKeys(),
		view:     boardView(rows...),
	}
}

func TestArchiveMovesCompletedRows(t *testing.T) {
	t.Parallel()
	fb := readyBoard(
		boardRow("row1", "write spec", "已完成"),
		boardRow("row2", "fix login", "进行中"),
		boardRow("row3", "clean desk", "已完成"),
	)
	hist := &fakeHist{}
	eng := New(fb, hist, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !res.Resolved {
		t.Fatal("board not resolved")
	}
	if len(res.Moved) != 2 || res.Failed != 0 {
		t.Fatalf("moved=%v failed=%d", res.Moved, res.Failed)
	}

	if len(fb.writes) != 2 {
		t.Fatalf("got %d writes, want 2", len(fb.writes))
	}
	for _, w := range fb.writes {
		if w.avID != "av1" || w.keyID != "key-status" {
			t.Fatalf("write targeted %s/%s", w.avID, w.keyID)
		}
		sv, ok := w.value.(siyuan.SelectValue)
		if !ok || len(sv.MSelect) != 1 {
			t.Fatalf("unexpected value payload: %#v", w.value)
		}
		if sv.MSelect[0].Content != "已归档" || sv.MSelect[0].Color != "3" {
			t.Fatalf("wrote %+v, want archived status with its color", sv.MSelect[0])
		}
	}

	if len(hist.pushed) != 1 {
		t.Fatalf("got %d undo records, want 1", len(hist.pushed))
	}
	if len(hist.pushed[0].IDs) != 2 {
		t.Fatalf("undo record ids = %v", hist.pushed[0].IDs)
	}
	if len(hist.audits) != 1 || hist.audits[0].Action != "archive" {
		t.Fatalf("audits = %+v", hist.audits)
	}
}

func TestArchiveRetriesWithTableView(t *testing.T) {
	t.Parallel()
	fb := readyBoard()
	// Kanban rendering: no row payloads, but the views list names a table
	// sibling that does carry them.
	fb.view = siyuan.RenderedView{
		"view": map[string]any{"type": "kanban"},
		"views": []any{
			map[string]any{"id": "v-kanban", "type": "kanban"},
			map[string]any{"id": "v-table", "type": "table"},
		},
	}
	fb.viewsByID = map[string]siyuan.RenderedView{
		"v-table": boardView(
			boardRow("row1", "write spec", "已完成"),
			boardRow("row2", "fix login", "进行中"),
		),
	}
	eng := New(fb, &fakeHist{}, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(res.Moved) != 1 || res.Moved[0] != "row1" {
		t.Fatalf("moved = %v, want [row1]", res.Moved)
	}
	if len(fb.rendered) != 2 || fb.rendered[1] != "v-table" {
		t.Fatalf("rendered views = %v, want the table view retried", fb.rendered)
	}
}

func TestArchiveNoTableViewStaysEmpty(t *testing.T) {
	t.Parallel()
	fb := readyBoard()
	fb.view = siyuan.RenderedView{
		"view": map[string]any{"type": "gallery"},
		"views": []any{
			map[string]any{"id": "v-gallery", "type": "gallery"},
		},
	}
	eng := New(fb, &fakeHist{}, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(res.Moved) != 0 {
		t.Fatalf("moved = %v, want none", res.Moved)
	}
	if len(fb.rendered) != 1 {
		t.Fatalf("rendered views = %v, want a single render", fb.rendered)
	}
}

func TestArchiveSkipsWhenBoardMissing(t *testing.T) {
	t.Parallel()
	fb := &fakeBoard{}
	eng := New(fb, &fakeHist{}, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.Resolved {
		t.Fatal("missing board reported as resolved")
	}
	if len(fb.writes) != 0 {
		t.Fatalf("writes on a missing board: %v", fb.writes)
	}
}

func TestArchiveRequiresBothStatusOptions(t *testing.T) {
	t.Parallel()
	fb := readyBoard(boardRow("row1", "task", "已完成"))
	// The select column only knows the completed status; without the archived
	// option nothing can move.
	fb.keys = []siyuan.AttrViewKey{
		{ID: "key-status", Name: "状态", Type: "select", Options: []siyuan.KeyOption{
			{Name: "已完成", Color: "2"},
		}},
	}
	eng := New(fb, &fakeHist{}, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !res.Resolved || !res.NoStatusKey {
		t.Fatalf("res = %+v, want resolved with no status key", res)
	}
	if len(fb.writes) != 0 {
		t.Fatalf("unexpected writes: %v", fb.writes)
	}
}

func TestArchiveToleratesRowFailures(t *testing.T) {
	t.Parallel()
	fb := readyBoard(
		boardRow("row1", "a", "已完成"),
		boardRow("row2", "b", "已完成"),
	)
	fb.failWrites = map[string]bool{"row1": true}
	hist := &fakeHist{}
	eng := New(fb, hist, logx.Nop())

	res, err := eng.Archive(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(res.Moved) != 1 || res.Failed != 1 {
		t.Fatalf("moved=%v failed=%d", res.Moved, res.Failed)
	}
	if res.Moved[0] != "row2" {
		t.Fatalf("moved %v, want row2", res.Moved)
	}
	if len(hist.pushed) != 1 || hist.pushed[0].IDs[0] != "row2" {
		t.Fatalf("undo record = %+v", hist.pushed)
	}
}

func TestArchiveNoUndoRecordWhenNothingMoved(t *testing.T) {
	t.Parallel()
	fb := readyBoard(boardRow("row1", "task", "进行中"))
	hist := &fakeHist{}
	eng := New(fb, hist, logx.Nop())

	if _, err := eng.Archive(context.Background(), testProfile()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(hist.pushed) != 0 {
		t.Fatalf("undo record pushed for an empty pass: %+v", hist.pushed)
	}
}

func TestFindStatusKey(t *testing.T) {
	t.Parallel()
	keys := statusKeys()

	keyID, color, ok := findStatusKey(keys, "已完成", "已归档")
	if !ok || keyID != "key-status" || color != "3" {
		t.Fatalf("findStatusKey = %q %q %v", keyID, color, ok)
	}

	if _, _, ok := findStatusKey(keys, "已完成", "不存在"); ok {
		t.Fatal("matched a key missing the target option")
	}
	if _, _, ok := findStatusKey(keys, "不存在", "已归档"); ok {
		t.Fatal("matched a key missing the source option")
	}
}

func TestRestoreBlindAssignment(t *testing.T) {
	t.Parallel()
	fb := readyBoard()
	hist := &fakeHist{popped: []storage.UndoRecord{
		{Date: 1, IDs: []string{"row1", "row2", "row3"}},
	}}
	eng := New(fb, hist, logx.Nop())

	res, err := eng.Restore(context.Background(), []config.Profile{testProfile()})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !res.Popped || res.Restored != 3 || res.Failed != 0 {
		t.Fatalf("res = %+v", res)
	}

	// Every recorded id is written back without rendering or matching rows.
	if len(fb.writes) != 3 {
		t.Fatalf("got %d writes, want 3", len(fb.writes))
	}
	for _, w := range fb.writes {
		sv := w.value.(siyuan.SelectValue)
		if sv.MSelect[0].Content != "已完成" || sv.MSelect[0].Color != "2" {
			t.Fatalf("restored to %+v, want completed status", sv.MSelect[0])
		}
	}
	if len(hist.audits) != 1 || hist.audits[0].Action != "restore" {
		t.Fatalf("audits = %+v", hist.audits)
	}
}

func TestRestoreSkipsDisabledProfilesAndSurvivesFailures(t *testing.T) {
	t.Parallel()
	fb := readyBoard()
	fb.failWrites = map[string]bool{"row2": true}
	hist := &fakeHist{popped: []storage.UndoRecord{
		{Date: 1, IDs: []string{"row1", "row2"}},
	}}
	eng := New(fb, hist, logx.Nop())

	disabled := testProfile()
	disabled.ID = "p2"
	disabled.Enabled = false

	res, err := eng.Restore(context.Background(), []config.Profile{disabled, testProfile()})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Restored != 1 || res.Failed != 1 {
		t.Fatalf("res = %+v", res)
	}
	if len(fb.writes) != 1 || fb.writes[0].itemID != "row1" {
		t.Fatalf("writes = %+v", fb.writes)
	}
}

func TestRestoreEmptyStack(t *testing.T) {
	t.Parallel()
	eng := New(readyBoard(), &fakeHist{}, logx.Nop())
	res, err := eng.Restore(context.Background(), []config.Profile{testProfile()})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Popped {
		t.Fatal("empty stack reported a record")
	}
}

func TestUndoDepth(t *testing.T) {
	t.Parallel()
	hist := &fakeHist{popped: []storage.UndoRecord{
		{Date: 1, IDs: []string{"a"}},
		{Date: 2, IDs: []string{"b"}},
	}}
	eng := New(&fakeBoard{}, hist, logx.Nop())
	n, err := eng.UndoDepth(context.Background())
	if err != nil {
		t.Fatalf("UndoDepth: %v", err)
	}
	if n != 2 {
		t.Fatalf("depth = %d, want 2", n)
	}

	disabled := New(&fakeBoard{}, nil, logx.Nop())
	n, err = disabled.UndoDepth(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("depth without history = %d, %v; want 0, nil", n, err)
	}
}
