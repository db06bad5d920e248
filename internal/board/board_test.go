package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"kanbard/internal/siyuan"
)

type fakeStore struct {
	doc      siyuan.Block
	docFound bool
	avBlock  siyuan.Block
	avFound  bool
	keys     []siyuan.AttrViewKey
	view     siyuan.RenderedView
	contents map[string]string
	err      error
}

func (f *fakeStore) FindDocumentByContent(ctx context.Context, keyword string) (siyuan.Block, bool, error) {
	return f.doc, f.docFound, f.err
}

func (f *fakeStore) FirstChildOfType(ctx context.Context, rootID, typ string) (siyuan.Block, bool, error) {
	return f.avBlock, f.avFound, f.err
}

func (f *fakeStore) AttributeViewKeys(ctx context.Context, avID string) ([]siyuan.AttrViewKey, error) {
	return f.keys, f.err
}

func (f *fakeStore) RenderAttributeView(ctx context.Context, avID, viewID string, pageSize, page int) (siyuan.RenderedView, error) {
	return f.view, f.err
}

func (f *fakeStore) BlockContents(ctx context.Context, ids []string) (map[string]string, error) {
	if f.contents == nil {
		return map[string]string{}, nil
	}
	return f.contents, nil
}

func TestResolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		store    *fakeStore
		wantErr  error
		wantRef  Ref
		wantBoth bool
	}{
		{
			name: "board and view ids from markup",
			store: &fakeStore{
				doc: siyuan.Block{ID: "doc1"}, docFound: true,
				avBlock: siyuan.Block{
					ID:       "blk1",
					Markdown: `<div data-av-id="av123" data-view-id="view456"></div>`,
				},
				avFound: true,
			},
			wantRef: Ref{BoardID: "av123", ViewID: "view456"},
		},
		{
			name: "view id defaults to board id",
			store: &fakeStore{
				doc: siyuan.Block{ID: "doc1"}, docFound: true,
				avBlock: siyuan.Block{ID: "blk1", Markdown: `<div data-av-id="av123"></div>`},
				avFound: true,
			},
			wantRef: Ref{BoardID: "av123", ViewID: "av123"},
		},
		{
			name:    "no document",
			store:   &fakeStore{},
			wantErr: ErrNotFound,
		},
		{
			name: "no attribute view block",
			store: &fakeStore{
				doc: siyuan.Block{ID: "doc1"}, docFound: true,
			},
			wantErr: ErrNotFound,
		},
		{
			name: "markup without board id",
			store: &fakeStore{
				doc: siyuan.Block{ID: "doc1"}, docFound: true,
				avBlock: siyuan.Block{ID: "blk1", Markdown: "plain text"},
				avFound: true,
			},
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := Resolve(context.Background(), tt.store, "kw")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if ref != tt.wantRef {
				t.Fatalf("ref = %+v, want %+v", ref, tt.wantRef)
			}
		})
	}
}

func TestInferRoles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cols []Column
		want Roles
	}{
		{
			name: "chinese names",
			cols: []Column{
				{ID: "a", Name: "内容", Type: "block"},
				{ID: "b", Name: "状态", Type: "select"},
				{ID: "c", Name: "更新时间", Type: "date"},
			},
			want: Roles{Content: 0, Status: 1, Time: 2},
		},
		{
			name: "english names",
			cols: []Column{
				{ID: "a", Name: "Content", Type: "text"},
				{ID: "b", Name: "Status", Type: "select"},
				{ID: "c", Name: "Updated", Type: "date"},
			},
			want: Roles{Content: 0, Status: 1, Time: 2},
		},
		{
			name: "type sniffing fallbacks",
			cols: []Column{
				{ID: "a", Name: "Task", Type: "block"},
				{ID: "b", Name: "Stage", Type: "mSelect"},
				{ID: "c", Name: "Due", Type: "date"},
			},
			want: Roles{Content: 0, Status: 1, Time: 2},
		},
		{
			name: "nothing matches",
			cols: []Column{{ID: "a", Name: "Foo", Type: "number"}},
			want: Roles{Content: -1, Status: -1, Time: -1},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := InferRoles(tt.cols)
			if got != tt.want {
				t.Fatalf("InferRoles = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractColumns(t *testing.T) {
	t.Parallel()
	view := map[string]any{
		"view": map[string]any{
			"columns": []any{
				map[string]any{"id": "c1", "name": "内容", "type": "block"},
				map[string]any{"key": map[string]any{"id": "c2", "name": "状态", "type": "select"}},
				map[string]any{"name": "skipped, no id"},
			},
		},
	}
	cols := ExtractColumns(view)
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[0].ID != "c1" || cols[1].ID != "c2" || cols[1].Name != "状态" {
		t.Fatalf("unexpected columns: %+v", cols)
	}
}

func TestExtractCellValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cell any
		want string
	}{
		{name: "scalar", cell: "hello", want: "hello"},
		{name: "integral number", cell: float64(42), want: "42"},
		{name: "content", cell: map[string]any{"content": "x"}, want: "x"},
		{name: "nested text", cell: map[string]any{"text": map[string]any{"content": "y"}}, want: "y"},
		{name: "nested block", cell: map[string]any{"block": map[string]any{"content": "z"}}, want: "z"},
		{
			name: "multi select joined",
			cell: map[string]any{"mSelect": []any{
				map[string]any{"content": "done"},
				map[string]any{"content": "review"},
			}},
			want: "done, review",
		},
		{name: "empty map", cell: map[string]any{}, want: ""},
		{name: "nil", cell: nil, want: ""},
	}
	for _, tt := range tests {
		if got := ExtractCellValue(tt.cell); got != tt.want {
			t.Fatalf("%s: ExtractCellValue = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolveTime(t *testing.T) {
	t.Parallel()
	localMidnight := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.Local).UnixMilli()
	compact := time.Date(2025, time.March, 5, 14, 30, 15, 0, time.Local).UnixMilli()

	tests := []struct {
		raw  string
		want int64
	}{
		{"2025-03-05", localMidnight},
		{"2025-03-05T14:30:15", localMidnight}, // date prefix wins
		{"20250305143015", compact},
		{"1741184400", 1741184400000},
		{"1741184400000", 1741184400000},
		{"", 0},
		{"not a time", 0},
	}
	for _, tt := range tests {
		if got := ResolveTime(tt.raw); got != tt.want {
			t.Fatalf("ResolveTime(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeRows(t *testing.T) {
	t.Parallel()
	cols := []Column{
		{ID: "k1", Name: "内容", Type: "block"},
		{ID: "k2", Name: "状态", Type: "select"},
		{ID: "k3", Name: "更新时间", Type: "date"},
	}
	view := map[string]any{
		"view": map[string]any{
			"rows": []any{
				map[string]any{
					"id": "row1",
					"cells": []any{
						map[string]any{"block": map[string]any{"content": "write report"}},
						map[string]any{"mSelect": []any{map[string]any{"content": "已完成"}}},
						map[string]any{"date": map[string]any{"content": "2025-03-05"}},
					},
				},
				map[string]any{
					"id": "row2",
					"cells": []any{
						nil,
						map[string]any{"mSelect": []any{map[string]any{"content": "进行中"}}},
						nil,
					},
					"block": map[string]any{"content": "fix login"},
				},
			},
		},
	}

	rows, err := Normalize(context.Background(), &fakeStore{}, view, cols, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	if rows[0].ID != "row1" || rows[0].Text != "write report" || rows[0].Status != "已完成" {
		t.Fatalf("row1 = %+v", rows[0])
	}
	if rows[0].Timestamp == 0 {
		t.Fatal("row1 timestamp not resolved")
	}
	if rows[1].Text != "fix login" {
		t.Fatalf("row2 content fallback = %q, want %q", rows[1].Text, "fix login")
	}
	if rows[1].Status != "进行中" {
		t.Fatalf("row2 status = %q", rows[1].Status)
	}
}

func TestNormalizeGroupStatusFallback(t *testing.T) {
	t.Parallel()
	cols := []Column{
		{ID: "k1", Name: "内容", Type: "block"},
		{ID: "k2", Name: "状态", Type: "select"},
	}
	view := map[string]any{
		"view": map[string]any{
			"groups": []any{
				map[string]any{
					"name": "已归档",
					"rows": []any{
						map[string]any{
							"id": "row1",
							"cells": []any{
								map[string]any{"block": map[string]any{"content": "old task"}},
								nil,
							},
						},
					},
				},
			},
		},
	}
	rows, err := Normalize(context.Background(), &fakeStore{}, view, cols, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Status != "已归档" {
		t.Fatalf("status = %q, want group label", rows[0].Status)
	}
}

func TestNormalizeFallbackText(t *testing.T) {
	t.Parallel()
	cols := []Column{{ID: "k1", Name: "内容", Type: "block"}}
	view := map[string]any{
		"rows": []any{
			map[string]any{"id": "row1", "cells": []any{nil}},
		},
	}
	rows, err := Normalize(context.Background(), &fakeStore{}, view, cols, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != FallbackText {
		t.Fatalf("rows = %+v, want fallback text", rows)
	}
}

func TestTableViewID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		view map[string]any
		want string
	}{
		{
			name: "table among siblings",
			view: map[string]any{"views": []any{
				map[string]any{"id": "v1", "type": "kanban"},
				map[string]any{"id": "v2", "type": "table"},
			}},
			want: "v2",
		},
		{
			name: "no table view",
			view: map[string]any{"views": []any{
				map[string]any{"id": "v1", "type": "gallery"},
			}},
			want: "",
		},
		{
			name: "no views list",
			view: map[string]any{"view": map[string]any{}},
			want: "",
		},
		{
			name: "table view without id",
			view: map[string]any{"views": []any{
				map[string]any{"type": "table"},
			}},
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := TableViewID(tc.view); got != tc.want {
				t.Errorf("TableViewID = %q, want %q", got, tc.want)
			}
		})
	}
}
