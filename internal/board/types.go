package board

import (
	"context"

	"kanbard/internal/siyuan"
)

// Store is the slice of the content store the board layer consumes.
// *siyuan.Client implements it; tests substitute fakes.
type Store interface {
	FindDocumentByContent(ctx context.Context, keyword string) (siyuan.Block, bool, error)
	FirstChildOfType(ctx context.Context, rootID, typ string) (siyuan.Block, bool, error)
	AttributeViewKeys(ctx context.Context, avID string) ([]siyuan.AttrViewKey, error)
	RenderAttributeView(ctx context.Context, avID, viewID string, pageSize, page int) (siyuan.RenderedView, error)
	BlockContents(ctx context.Context, ids []string) (map[string]string, error)
}

// Ref identifies one resolved board.
type Ref struct {
	BoardID string
	ViewID  string
}

// Column is a board column in view order.
type Column struct {
	ID   string
	Name string
	Type string
}

// Roles holds the inferred column indexes; -1 means "no column matched".
type Roles struct {
	Content int
	Status  int
	Time    int
}

// Row is the canonical flattened form of one board row. Derived fresh on
// every extraction; never cached, the underlying board may have changed.
type Row struct {
	ID string

	// Text is the resolved row content after all fallbacks.
	Text string

	// Status is the raw status text (cell value, or GroupStatus, or a
	// candidate-bearing cell). Normalization happens in the classifier.
	Status string

	// GroupStatus is the nearest enclosing group label when the payload is
	// hierarchically grouped. Used as a status fallback.
	GroupStatus string

	// Timestamp is the resolved board timestamp in epoch ms; 0 when neither
	// the timestamp column nor the generic update time yielded anything.
	Timestamp int64

	// Cells are the raw positional cell payloads (one per column) for callers
	// that need the underlying encodings, e.g. exact select matching.
	Cells []any

	// CellValues are the extracted text values, positional per column.
	CellValues []string
}
