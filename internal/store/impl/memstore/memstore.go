package memstore

import (
	"context"
	"sync"

	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

// Store keeps readings in process memory. Used for tests and for running
// without any database; readings do not survive a restart.
type Store struct {
	mu     sync.Mutex
	seq    int64
	buf    []reading.StoredReading
	clock  store.Clock
	config StoreConfig
}

type StoreConfig struct {
	MaxRecent int
}

func NewStore(config StoreConfig) *Store {
	o := &Store{config: config}
	o.buf = make([]reading.StoredReading, 0, 128)
	return o
}

func (st *Store) Append(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seq++
	rec := reading.StoredReading{
		Id:         store.EncodeID(st.seq),
		DeviceId:   r.DeviceId,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Timestamp:  r.Timestamp,
		ReceivedAt: st.clock.Now(),
	}
	st.buf = append(st.buf, rec)
	return rec, nil
}

func (st *Store) Recent(ctx context.Context, limit int) ([]reading.StoredReading, error) {
	limit = store.ClampLimit(limit, st.config.MaxRecent)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := limit
	if n > len(st.buf) {
		n = len(st.buf)
	}
	out := make([]reading.StoredReading, 0, n)
	for i := len(st.buf) - 1; i >= len(st.buf)-n; i-- {
		out = append(out, st.buf[i])
	}
	return out, nil
}
