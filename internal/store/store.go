package store

import (
	"context"
	"errors"

	"nuha.dev/safetracker/internal/reading"
)

// ErrUnavailable is returned when the backing medium cannot be reached.
// The ingest path treats it as a hard failure for that request.
var ErrUnavailable = errors.New("reading store unavailable")

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// ReadingStore is an append-only store of location readings with
// query-by-recency. Append assigns id and received_at and persists
// atomically. Recent returns newest first, ties broken by append order.
type ReadingStore interface {
	Append(ctx context.Context, r reading.Reading) (reading.StoredReading, error)
	Recent(ctx context.Context, limit int) ([]reading.StoredReading, error)
}

// ClampLimit applies the default for unspecified limits and the
// configured cap regardless of what the caller asked for.
func ClampLimit(limit int, max int) int {
	if max <= 0 {
		max = MaxRecentLimit
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > max {
		limit = max
	}
	return limit
}
