package pgstore

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"

	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

type Store struct {
	config *StoreConfig
	dbp    *pgxpool.Pool
	clock  store.Clock
	log    log.Logger
}

type StoreConfig struct {
	Table     string
	MaxRecent int
}

func NewStore(db *pgxpool.Pool, config *StoreConfig) *Store {
	o := &Store{}
	o.config = config
	if o.config.Table == "" {
		o.config.Table = "reading"
	}
	o.dbp = db
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "pgstore").Value()
	return o
}

func (st *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + st.config.Table + ` (
			id bigserial PRIMARY KEY,
			device_id text,
			latitude double precision NOT NULL,
			longitude double precision NOT NULL,
			device_time text,
			received_at timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + st.config.Table + `_received_at_idx
			ON ` + st.config.Table + ` (received_at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		_, err := st.dbp.Exec(ctx, stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

// Append inserts one row. The insert either lands completely or the call
// fails with ErrUnavailable; received_at is taken from the process clock
// so it stays monotonic even if the database clock steps.
func (st *Store) Append(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	srvt := st.clock.Now()
	var id int64
	sql := `INSERT INTO ` + st.config.Table + ` (device_id,latitude,longitude,device_time,received_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`
	err := st.dbp.QueryRow(ctx, sql, r.DeviceId, r.Latitude, r.Longitude, r.Timestamp, srvt).Scan(&id)
	if err != nil {
		st.log.Error().Err(err).Msg("append failed")
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
	sql := `SELECT id,device_id,latitude,longitude,device_time,received_at FROM ` + st.config.Table + `
		ORDER BY received_at DESC, id DESC LIMIT $1`
	rows, err := st.dbp.Query(ctx, sql, limit)
	if err != nil {
		st.log.Error().Err(err).Msg("recent query failed")
		return nil, store.ErrUnavailable
	}
	defer rows.Close()
	out := make([]reading.StoredReading, 0, limit)
	for rows.Next() {
		var id int64
		rec := reading.StoredReading{}
		err := rows.Scan(&id, &rec.DeviceId, &rec.Latitude, &rec.Longitude, &rec.Timestamp, &rec.ReceivedAt)
		if err != nil {
			st.log.Error().Err(err).Msg("recent scan failed")
			return nil, store.ErrUnavailable
		}
		rec.Id = store.EncodeID(id)
		out = append(out, rec)
	}
	if rows.Err() != nil {
		st.log.Error().Err(rows.Err()).Msg("recent query failed")
		return nil, store.ErrUnavailable
	}
	return out, nil
}
