package query

import (
	"context"

	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

// Service is the read counterpart of ingest, consumed by the dashboard and
// by viewers reconnecting after a gap.
type Service struct {
	store store.ReadingStore
}

func NewService(st store.ReadingStore) *Service {
	return &Service{store: st}
}

// ListRecent returns the most recently accepted readings, newest first.
// Limit semantics (default, cap) belong to the store.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]reading.StoredReading, error) {
	return s.store.Recent(ctx, limit)
}
