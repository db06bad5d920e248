package board

import (
	"context"
	"strconv"
	"strings"
)

// FallbackText marks rows whose content could not be resolved at all.
const FallbackText = "无内容"

const (
	// maxWalkDepth bounds the row-collection walk; the payload is
	// self-describing and may nest groups pathologically.
	maxWalkDepth = 5
	// maxIDDepth bounds the bound-block id search inside one cell payload.
	maxIDDepth = 4
)

// Options tweaks normalization.
type Options struct {
	// StatusCandidates are normalized status strings used as a last-resort
	// signal when neither the status column nor the group label yields a
	// status: the first cell containing any candidate is taken.
	StatusCandidates []string
}

type rawRow struct {
	id          string
	cells       []any
	values      []any
	node        map[string]any
	groupStatus string
}

// Normalize flattens a rendered board payload into canonical rows.
// The payload shape varies by view type; rows are found by a bounded-depth
// walk, cell text by an ordered list of extractors, and missing content falls
// back to the row's bound block fetched in batches from the store.
func Normalize(ctx context.Context, store Store, view map[string]any, cols []Column, opts Options) ([]Row, error) {
	raws := collectRows(view, "", 0)
	if len(raws) == 0 {
		return nil, nil
	}

	roles := InferRoles(cols)

	type prepared struct {
		raw            rawRow
		cellValues     []string
		cells          []any
		contentBlockID string
		contentFromRow string
		updatedAt      string
	}

	prep := make([]prepared, 0, len(raws))
	var blockIDs []string
	for _, raw := range raws {
		cells := raw.cells

		// Some view types publish {keyID, value} pairs instead of positional
		// cells; reorder them to column positions.
		var valuesCells []any
		if len(raw.values) > 0 {
			valuesCells = make([]any, len(cols))
			for i, col := range cols {
				for _, v := range raw.values {
					vm, ok := v.(map[string]any)
					if !ok {
						continue
					}
					if keyID, _ := vm["keyID"].(string); keyID == col.ID {
						valuesCells[i] = vm["value"]
						break
					}
				}
			}
		}

		fromCells := extractAll(cells)
		fromValues := extractAll(valuesCells)
		finalValues := fromCells
		if !anyNonEmpty(fromCells) && anyNonEmpty(fromValues) {
			cells = valuesCells
			finalValues = fromValues
		}

		var contentCell any
		if roles.Content >= 0 && roles.Content < len(cells) {
			contentCell = cells[roles.Content]
		}
		blockID := extractBlockID(contentCell, 0)
		if blockID == "" {
			blockID = extractBlockID(raw.node["block"], 0)
		}
		if blockID == "" {
			blockID = extractBlockID(raw.node, 0)
		}
		if blockID != "" {
			blockIDs = append(blockIDs, blockID)
		}

		p := prepared{
			raw:            raw,
			cells:          cells,
			cellValues:     finalValues,
			contentBlockID: blockID,
			contentFromRow: rowContent(raw.node),
			updatedAt:      stringify(firstDefined(raw.node, "updatedAt", "updated")),
		}
		prep = append(prep, p)
	}

	blockMap := map[string]string{}
	if len(blockIDs) > 0 {
		m, err := store.BlockContents(ctx, blockIDs)
		if err == nil {
			blockMap = m
		}
		// A failed batch fetch only degrades the content fallback.
	}

	rows := make([]Row, 0, len(prep))
	for _, p := range prep {
		text := ""
		if roles.Content >= 0 && roles.Content < len(p.cellValues) {
			text = p.cellValues[roles.Content]
		}
		if text == "" {
			text = p.contentFromRow
		}
		if text == "" && p.contentBlockID != "" {
			text = blockMap[p.contentBlockID]
		}
		if text == "" {
			for i, v := range p.cellValues {
				if i == roles.Status || i == roles.Time {
					continue
				}
				if strings.TrimSpace(v) != "" {
					text = v
					break
				}
			}
		}
		if text == "" {
			text = FallbackText
		}

		status := ""
		if roles.Status >= 0 && roles.Status < len(p.cellValues) {
			status = p.cellValues[roles.Status]
		}
		if status == "" {
			status = p.raw.groupStatus
		}
		if status == "" && len(opts.StatusCandidates) > 0 {
			for _, v := range p.cellValues {
				vl := strings.ToLower(v)
				for _, cand := range opts.StatusCandidates {
					if cand != "" && strings.Contains(vl, cand) {
						status = v
						break
					}
				}
				if status != "" {
					break
				}
			}
		}

		attrTime := ""
		if roles.Time >= 0 && roles.Time < len(p.cellValues) {
			attrTime = p.cellValues[roles.Time]
		}
		ts := ResolveTime(attrTime)
		if ts == 0 {
			ts = ResolveTime(p.updatedAt)
		}

		rows = append(rows, Row{
			ID:          p.raw.id,
			Text:        text,
			Status:      status,
			GroupStatus: p.raw.groupStatus,
			Timestamp:   ts,
			Cells:       p.cells,
			CellValues:  p.cellValues,
		})
	}
	return rows, nil
}

// collectRows walks the payload collecting anything row-like: a map with an
// id plus either a cells or a values array. Rows inside a "groups" array
// inherit the nearest group label as a fallback status signal.
func collectRows(node any, group string, depth int) []rawRow {
	if depth > maxWalkDepth {
		return nil
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}

	var res []rawRow

	id, _ := m["id"].(string)
	cells, hasCells := m["cells"].([]any)
	values, hasValues := m["values"].([]any)
	if id != "" && (hasCells || hasValues) {
		res = append(res, rawRow{id: id, cells: cells, values: values, node: m, groupStatus: group})
	}

	for k, child := range m {
		switch c := child.(type) {
		case []any:
			if k == "groups" {
				for _, g := range c {
					label := groupLabel(g)
					if label == "" {
						label = group
					}
					res = append(res, collectRows(g, label, depth+1)...)
				}
			} else {
				for _, item := range c {
					res = append(res, collectRows(item, group, depth+1)...)
				}
			}
		case map[string]any:
			if k == "columns" || k == "fields" || k == "keyValues" {
				continue
			}
			res = append(res, collectRows(c, group, depth+1)...)
		}
	}
	return res
}

// groupLabel digs the display label out of a group node.
func groupLabel(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range []string{"name", "title", "label"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	if v, ok := m["value"]; ok {
		if s := ExtractCellValue(v); s != "" {
			return s
		}
	}
	if k, ok := m["key"]; ok {
		if s := ExtractCellValue(k); s != "" {
			return s
		}
		if km, ok := k.(map[string]any); ok {
			if s, _ := km["name"].(string); s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractCellValue reduces one cell payload to text. Encodings are tried in a
// fixed order: scalar, {content}, {text:{content}}, {block:{content}},
// {date:{content}}, {mSelect:[...]}, {select:{content}}, then any nested
// object, first non-empty wins.
func ExtractCellValue(v any) string {
	return extractCellValue(v, 0)
}

func extractCellValue(v any, depth int) string {
	if v == nil || depth > maxWalkDepth {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := extractCellValue(item, depth+1); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if c, ok := x["content"]; ok {
			if s := stringify(c); s != "" {
				return s
			}
		}
		for _, k := range []string{"text", "block", "date", "select"} {
			if sub, ok := x[k].(map[string]any); ok {
				if c, ok := sub["content"]; ok {
					if s := stringify(c); s != "" {
						return s
					}
				}
			}
		}
		if ms, ok := x["mSelect"].([]any); ok && len(ms) > 0 {
			parts := make([]string, 0, len(ms))
			for _, item := range ms {
				if im, ok := item.(map[string]any); ok {
					if s := stringify(im["content"]); s != "" {
						parts = append(parts, s)
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
		for _, sub := range x {
			if _, isMap := sub.(map[string]any); !isMap {
				continue
			}
			if s := extractCellValue(sub, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractBlockID hunts for a bound content-block id inside a cell payload.
func extractBlockID(v any, depth int) string {
	if v == nil || depth > maxIDDepth {
		return ""
	}
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if id := extractBlockID(item, depth+1); id != "" {
				return id
			}
		}
	case map[string]any:
		if b, ok := x["block"].(map[string]any); ok {
			if id, _ := b["id"].(string); id != "" {
				return id
			}
		}
		if id, _ := x["blockID"].(string); id != "" {
			return id
		}
		// Store block ids are 22 chars; require length to avoid picking up
		// short ids of unrelated sub-objects.
		if id, _ := x["id"].(string); len(id) >= 20 {
			return id
		}
		for _, sub := range x {
			if id := extractBlockID(sub, depth+1); id != "" {
				return id
			}
		}
	}
	return ""
}

func rowContent(node map[string]any) string {
	if node == nil {
		return ""
	}
	if b, ok := node["block"].(map[string]any); ok {
		if s, _ := b["content"].(string); s != "" {
			return s
		}
	}
	if s, _ := node["content"].(string); s != "" {
		return s
	}
	if s, _ := node["name"].(string); s != "" {
		return s
	}
	return ""
}

func firstDefined(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func extractAll(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = ExtractCellValue(c)
	}
	return out
}

func anyNonEmpty(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
