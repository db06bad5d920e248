package storage

// Package storage persists the undo stack and the run audit log.
//
// It currently supports:
//   - A bounded LIFO stack of archive undo records
//   - Run audit appends (scheduled and manual runs)
