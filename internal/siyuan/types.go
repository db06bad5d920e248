package siyuan

import "encoding/json"

// Block is the subset of block columns the daemon reads via SQL.
type Block struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	RootID   string `json:"root_id"`
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	Content  string `json:"content"`
	Markdown string `json:"markdown"`
	HPath    string `json:"hpath"`
	IAL      string `json:"ial"`
	Sort     int    `json:"sort"`
}

type Notebook struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// KeyOption is one choice of a select/mSelect column.
type KeyOption struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AttrViewKey describes one attribute-view column.
type AttrViewKey struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Options []KeyOption `json:"options,omitempty"`
}

// SelectOption is one chosen value inside a select/mSelect cell. Cells carry
// "content" where key options carry "name"; the kernel is strict about it.
type SelectOption struct {
	Content string `json:"content"`
	Color   string `json:"color"`
}

// SelectValue is the cell payload written when moving a row between statuses.
// The store accepts an mSelect array for both select and mSelect columns.
type SelectValue struct {
	MSelect []SelectOption `json:"mSelect"`
}

// RenderedView is the raw render payload. Its shape varies wildly by view
// type (plain rows, nested groups, "values" vs "cells" arrays), so it stays
// untyped and is interpreted by the board normalizer's bounded walk.
type RenderedView = map[string]any

type transactionResult struct {
	DoOperations []struct {
		ID string `json:"id"`
	} `json:"doOperations"`
}

func decodeCreatedIDs(raw json.RawMessage) []string {
	var txs []transactionResult
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil
	}
	var ids []string
	for _, tx := range txs {
		for _, op := range tx.DoOperations {
			if op.ID != "" {
				ids = append(ids, op.ID)
			}
		}
	}
	return ids
}
