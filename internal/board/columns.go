package board

import (
	"strings"

	"kanbard/internal/siyuan"
)

// ExtractColumns pulls the column list out of a rendered view payload.
// Depending on view type the columns live under view.columns, view.fields,
// or at the top level, and each entry may wrap the key in a "key" field.
func ExtractColumns(view map[string]any) []Column {
	root := view
	if sub, ok := view["view"].(map[string]any); ok {
		root = sub
	}
	raw, ok := root["columns"].([]any)
	if !ok {
		raw, _ = root["fields"].([]any)
	}

	cols := make([]Column, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if k, ok := m["key"].(map[string]any); ok {
			m = k
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		name, _ := m["name"].(string)
		typ, _ := m["type"].(string)
		cols = append(cols, Column{ID: id, Name: name, Type: typ})
	}
	return cols
}

// TableViewID returns the id of the table-typed sibling view when the render
// payload lists one. Gallery and kanban renderings can come back without row
// payloads; re-rendering through the table view recovers the rows.
func TableViewID(view map[string]any) string {
	views, _ := view["views"].([]any)
	for _, v := range views {
		vm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := vm["type"].(string); t != "table" {
			continue
		}
		if id, _ := vm["id"].(string); id != "" {
			return id
		}
	}
	return ""
}

// ColumnsFromKeys converts the schema key list into view columns. Used when a
// caller has the column schema but no rendered payload to extract from.
func ColumnsFromKeys(keys []siyuan.AttrViewKey) []Column {
	cols := make([]Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, Column{ID: k.ID, Name: k.Name, Type: k.Type})
	}
	return cols
}

// InferRoles guesses which columns hold row content, status and timestamp.
// Name synonyms win over type sniffing; a select-ish column is assumed to be
// the status column only when no name matched. Pure function so fixture
// column sets can exercise it directly.
func InferRoles(cols []Column) Roles {
	r := Roles{Content: -1, Status: -1, Time: -1}

	r.Content = firstIndex(cols,
		func(c Column) bool { return strings.Contains(c.Name, "内容") },
		func(c Column) bool { return strings.Contains(strings.ToLower(c.Name), "content") },
		func(c Column) bool { return c.Type == "block" },
	)

	r.Status = firstIndex(cols,
		func(c Column) bool { return strings.Contains(c.Name, "状态") },
		func(c Column) bool { return strings.Contains(strings.ToLower(c.Name), "status") },
	)
	if r.Status == -1 {
		for i, c := range cols {
			switch strings.ToLower(c.Type) {
			case "select", "mselect", "multiselect", "singleselect":
				r.Status = i
			}
			if r.Status != -1 {
				break
			}
		}
	}

	r.Time = firstIndex(cols,
		func(c Column) bool { return strings.Contains(c.Name, "更新时间") },
		func(c Column) bool { return strings.Contains(strings.ToLower(c.Name), "update") },
		func(c Column) bool { return strings.Contains(c.Name, "更新") },
		func(c Column) bool { return strings.Contains(c.Name, "修改") },
	)
	if r.Time == -1 {
		r.Time = firstIndex(cols,
			func(c Column) bool { return strings.Contains(c.Name, "完成") },
			func(c Column) bool { return strings.Contains(c.Name, "结束") },
			func(c Column) bool { return strings.Contains(c.Name, "归档") },
			func(c Column) bool { return strings.Contains(strings.ToLower(c.Name), "done") },
		)
	}
	if r.Time == -1 {
		r.Time = firstIndex(cols,
			func(c Column) bool { return strings.Contains(c.Name, "时间") },
			func(c Column) bool { return strings.Contains(strings.ToLower(c.Name), "time") },
			func(c Column) bool { return c.Type == "date" },
		)
	}

	return r
}

// firstIndex returns the index of the first column (in view order) matching
// any of the predicates.
func firstIndex(cols []Column, preds ...func(Column) bool) int {
	for i, c := range cols {
		for _, p := range preds {
			if p(c) {
				return i
			}
		}
	}
	return -1
}
