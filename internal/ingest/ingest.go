package ingest

import (
	"context"
	"encoding/json"

	"github.com/phuslu/log"

	"nuha.dev/safetracker/internal/hub"
	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
)

// Service is the single write path: parse, validate, persist, broadcast.
type Service struct {
	store store.ReadingStore
	hub   *hub.Hub
	log   log.Logger
}

func NewService(st store.ReadingStore, h *hub.Hub) *Service {
	o := &Service{store: st, hub: h}
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "ingest").Value()
	return o
}

// Ingest accepts one raw device payload. Rejected payloads
// (reading.ErrInvalidCoordinates, reading.ErrBadPayload) leave no side
// effects; a store failure (store.ErrUnavailable) means nothing was
// broadcast. Once the append has started the reading is committed and
// viewer delivery outcomes cannot fail or slow the call.
func (s *Service) Ingest(ctx context.Context, payload []byte) (reading.StoredReading, error) {
	cand, err := reading.ParseCandidate(payload)
	if err != nil {
		return reading.StoredReading{}, err
	}
	if err := reading.Validate(cand); err != nil {
		return reading.StoredReading{}, err
	}
	r := cand.Reading()
	s.log.Info().Str("device", r.DeviceLabel()).Float64("latitude", r.Latitude).Float64("longitude", r.Longitude).Msg("reading received")

	rec, err := s.store.Append(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Str("device", r.DeviceLabel()).Msg("append failed")
		return reading.StoredReading{}, err
	}

	d, err := json.Marshal(rec)
	if err != nil {
		// the record is already durable, only the broadcast is lost
		s.log.Error().Err(err).Str("id", rec.Id).Msg("encode failed")
		return rec, nil
	}
	s.hub.Publish(d)
	return rec, nil
}
