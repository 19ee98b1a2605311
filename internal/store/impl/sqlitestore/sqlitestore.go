package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

// received_at column layout. Fixed-width fractional seconds so the text
// column sorts chronologically; RFC3339Nano would trim trailing zeros
// and break lexicographic ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists readings in an embedded SQLite database. Timestamps are
// stored as fixed-width RFC3339 text; the autoincrement row id is the
// append-order tie breaker.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	clock  store.Clock
	config StoreConfig
}

type StoreConfig struct {
	Path      string
	MaxRecent int
}

// Open initializes the database connection, creating directories as needed.
func Open(config StoreConfig) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", config.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db, config: config}, nil
}

func (st *Store) Close() error {
	if st.db == nil {
		return nil
	}
	return st.db.Close()
}

// InitSchema ensures the reading table exists.
func (st *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reading (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			device_time TEXT,
			received_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reading_received_at ON reading(received_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := st.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Append holds the store lock across the clock reading and the insert so
// row id order and received_at order always agree under concurrent calls.
func (st *Store) Append(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	srvt := st.clock.Now()
	res, err := st.db.ExecContext(
		ctx,
		`INSERT INTO reading (device_id, latitude, longitude, device_time, received_at) VALUES (?, ?, ?, ?, ?);`,
		r.DeviceId,
		r.Latitude,
		r.Longitude,
		r.Timestamp,
		srvt.Format(timeLayout),
	)
	if err != nil {
		return reading.StoredReading{}, store.ErrUnavailable
	}
	id, err := res.LastInsertId()
	if err != nil {
		return reading.StoredReading{}, store.ErrUnavailable
	}

	rec := reading.StoredReading{
		Id:         store.EncodeID(id),
		DeviceId:   r.DeviceId,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Timestamp:  r.Timestamp,
		ReceivedAt: srvt,
	}
	return rec, nil
}

func (st *Store) Recent(ctx context.Context, limit int) ([]reading.StoredReading, error) {
	limit = store.ClampLimit(limit, st.config.MaxRecent)
	rows, err := st.db.QueryContext(
		ctx,
		`SELECT id, device_id, latitude, longitude, device_time, received_at FROM reading ORDER BY received_at DESC, id DESC LIMIT ?;`,
		limit,
	)
	if err != nil {
		return nil, store.ErrUnavailable
	}
	defer rows.Close()

	out := make([]reading.StoredReading, 0, limit)
	for rows.Next() {
		var (
			id            int64
			deviceId      sql.NullString
			lat, lon      float64
			deviceTime    sql.NullString
			receivedAtStr string
		)
		if err := rows.Scan(&id, &deviceId, &lat, &lon, &deviceTime, &receivedAtStr); err != nil {
			return nil, store.ErrUnavailable
		}

		receivedAt, err := time.Parse(time.RFC3339Nano, receivedAtStr)
		if err != nil {
			return nil, store.ErrUnavailable
		}

		rec := reading.StoredReading{
			Id:         store.EncodeID(id),
			Latitude:   lat,
			Longitude:  lon,
			ReceivedAt: receivedAt,
		}
		if deviceId.Valid {
			rec.DeviceId = &deviceId.String
		}
		if deviceTime.Valid {
			rec.Timestamp = &deviceTime.String
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, store.ErrUnavailable
	}
	return out, nil
}
