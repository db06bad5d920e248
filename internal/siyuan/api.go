package siyuan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SQL runs a read query against the store's block index.
func (c *Client) SQL(ctx context.Context, stmt string) ([]map[string]any, error) {
	var rows []map[string]any
	if err := c.post(ctx, "/api/query/sql", map[string]any{"stmt": stmt}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryBlocks is SQL() with the rows decoded into Block structs.
func (c *Client) QueryBlocks(ctx context.Context, stmt string) ([]Block, error) {
	var blocks []Block
	if err := c.post(ctx, "/api/query/sql", map[string]any{"stmt": stmt}, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// EscapeSQL doubles single quotes for safe embedding in SQL string literals.
func EscapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// FindDocumentByContent returns the first document block whose content
// contains keyword. ok=false means no match (not an error).
func (c *Client) FindDocumentByContent(ctx context.Context, keyword string) (Block, bool, error) {
	stmt := fmt.Sprintf("SELECT id FROM blocks WHERE content LIKE '%%%s%%' AND type = 'd' LIMIT 1", EscapeSQL(keyword))
	blocks, err := c.QueryBlocks(ctx, stmt)
	if err != nil {
		return Block{}, false, err
	}
	if len(blocks) == 0 {
		return Block{}, false, nil
	}
	return blocks[0], true, nil
}

// FirstChildOfType returns the first block of the given type under rootID.
func (c *Client) FirstChildOfType(ctx context.Context, rootID, typ string) (Block, bool, error) {
	stmt := fmt.Sprintf("SELECT id, markdown FROM blocks WHERE root_id = '%s' AND type = '%s' LIMIT 1",
		EscapeSQL(rootID), EscapeSQL(typ))
	blocks, err := c.QueryBlocks(ctx, stmt)
	if err != nil {
		return Block{}, false, err
	}
	if len(blocks) == 0 {
		return Block{}, false, nil
	}
	return blocks[0], true, nil
}

// blockContentChunk bounds the ids-per-query batch in BlockContents.
const blockContentChunk = 100

// BlockContents fetches content text for the given block ids, chunked to keep
// individual SQL statements bounded. Unknown ids are simply absent from the map.
func (c *Client) BlockContents(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	seen := map[string]bool{}
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	for i := 0; i < len(unique); i += blockContentChunk {
		end := i + blockContentChunk
		if end > len(unique) {
			end = len(unique)
		}
		quoted := make([]string, 0, end-i)
		for _, id := range unique[i:end] {
			quoted = append(quoted, "'"+EscapeSQL(id)+"'")
		}
		stmt := fmt.Sprintf("SELECT id, content FROM blocks WHERE id IN (%s)", strings.Join(quoted, ","))
		blocks, err := c.QueryBlocks(ctx, stmt)
		if err != nil {
			return nil, err
		}
		for _, b := range blocks {
			if b.ID != "" {
				out[b.ID] = b.Content
			}
		}
	}
	return out, nil
}

func (c *Client) AttributeViewKeys(ctx context.Context, avID string) ([]AttrViewKey, error) {
	var keys []AttrViewKey
	err := c.post(ctx, "/api/av/getAttributeViewKeysByAvID", map[string]any{"avID": avID}, &keys)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *Client) RenderAttributeView(ctx context.Context, avID, viewID string, pageSize, page int) (RenderedView, error) {
	if pageSize <= 0 {
		pageSize = 9999999
	}
	if page <= 0 {
		page = 1
	}
	var view RenderedView
	err := c.post(ctx, "/api/av/renderAttributeView", map[string]any{
		"id":       avID,
		"viewID":   viewID,
		"pageSize": pageSize,
		"page":     page,
	}, &view)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (c *Client) SetAttributeViewBlockAttr(ctx context.Context, avID, keyID, itemID string, value any) error {
	return c.post(ctx, "/api/av/setAttributeViewBlockAttr", map[string]any{
		"avID":   avID,
		"keyID":  keyID,
		"itemID": itemID,
		"value":  value,
	}, nil)
}

// AppendBlock appends markdown under parentID and returns the created block ids.
func (c *Client) AppendBlock(ctx context.Context, parentID, markdown string) ([]string, error) {
	var raw json.RawMessage
	err := c.post(ctx, "/api/block/appendBlock", map[string]any{
		"dataType": "markdown",
		"data":     markdown,
		"parentID": parentID,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeCreatedIDs(raw), nil
}

func (c *Client) DeleteBlock(ctx context.Context, id string) error {
	return c.post(ctx, "/api/block/deleteBlock", map[string]any{"id": id}, nil)
}

func (c *Client) SetBlockAttrs(ctx context.Context, id string, attrs map[string]string) error {
	return c.post(ctx, "/api/attr/setBlockAttrs", map[string]any{"id": id, "attrs": attrs}, nil)
}

// CreateDocWithMarkdown creates a document at the human-readable path and
// returns its id.
func (c *Client) CreateDocWithMarkdown(ctx context.Context, notebookID, path, markdown string) (string, error) {
	var docID string
	err := c.post(ctx, "/api/filetree/createDocWithMd", map[string]any{
		"notebook": notebookID,
		"path":     path,
		"markdown": markdown,
	}, &docID)
	if err != nil {
		return "", err
	}
	if docID == "" {
		return "", fmt.Errorf("createDocWithMd: empty doc id for %q", path)
	}
	return docID, nil
}

// ListNotebooks returns the open notebooks only.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	var data struct {
		Notebooks []Notebook `json:"notebooks"`
	}
	if err := c.post(ctx, "/api/notebook/lsNotebooks", map[string]any{}, &data); err != nil {
		return nil, err
	}
	open := data.Notebooks[:0]
	for _, nb := range data.Notebooks {
		if !nb.Closed {
			open = append(open, nb)
		}
	}
	return open, nil
}

func (c *Client) PushMsg(ctx context.Context, msg string) error {
	return c.post(ctx, "/api/notification/pushMsg", map[string]any{"msg": msg, "timeout": 7000}, nil)
}

func (c *Client) PushErrMsg(ctx context.Context, msg string) error {
	return c.post(ctx, "/api/notification/pushErrMsg", map[string]any{"msg": msg, "timeout": 7000}, nil)
}
