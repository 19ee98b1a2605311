package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"nuha.dev/safetracker/internal/hub"
	"nuha.dev/safetracker/internal/reading"
	"nuha.dev/safetracker/internal/store"
	"nuha.dev/safetracker/internal/store/impl/memstore"
)

type failingStore struct{}

func (f *failingStore) Append(ctx context.Context, r reading.Reading) (reading.StoredReading, error) {
	return reading.StoredReading{}, store.ErrUnavailable
}

func (f *failingStore) Recent(ctx context.Context, limit int) ([]reading.StoredReading, error) {
	return nil, store.ErrUnavailable
}

func TestIngestValid(t *testing.T) {
	st := memstore.NewStore(memstore.StoreConfig{})
	svc := NewService(st, hub.NewHub())

	rec, err := svc.Ingest(context.Background(), []byte(`{"latitude":12.9,"longitude":77.6}`))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Id == "" {
		t.Error("missing assigned id")
	}
	if rec.ReceivedAt.IsZero() {
		t.Error("missing assigned receivedAt")
	}
	if rec.Latitude != 12.9 || rec.Longitude != 77.6 {
		t.Error("coordinates mangled")
	}

	recs, err := st.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Id != rec.Id {
		t.Error("reading not persisted")
	}
}

func TestIngestRejectedNoSideEffects(t *testing.T) {
	st := memstore.NewStore(memstore.StoreConfig{})
	h := hub.NewHub()
	svc := NewService(st, h)
	v := h.Subscribe(4)

	payloads := []string{
		`{"latitude":"x","longitude":77.6}`,
		`{"longitude":77.6}`,
		`{"deviceId":"d1"}`,
		`not json`,
	}
	for _, p := range payloads {
		_, err := svc.Ingest(context.Background(), []byte(p))
		if err == nil {
			t.Fatalf("payload accepted: %s", p)
		}
		if !errors.Is(err, reading.ErrInvalidCoordinates) && !errors.Is(err, reading.ErrBadPayload) {
			t.Errorf("unexpected error for %s: %v", p, err)
		}
	}

	recs, _ := st.Recent(context.Background(), 100)
	if len(recs) != 0 {
		t.Error("rejected payloads must not be stored")
	}
	if len(v.C()) != 0 {
		t.Error("rejected payloads must not be broadcast")
	}
}

func TestIngestBroadcast(t *testing.T) {
	st := memstore.NewStore(memstore.StoreConfig{})
	h := hub.NewHub()
	svc := NewService(st, h)
	v1 := h.Subscribe(4)
	v2 := h.Subscribe(4)

	rec, err := svc.Ingest(context.Background(), []byte(`{"deviceId":"d1","latitude":12.9,"longitude":77.6}`))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []*hub.Viewer{v1, v2} {
		select {
		case d := <-v.C():
			got := reading.StoredReading{}
			if err := json.Unmarshal(d, &got); err != nil {
				t.Fatal(err)
			}
			if got.Id != rec.Id || got.Latitude != rec.Latitude || got.Longitude != rec.Longitude {
				t.Error("broadcast payload differs from stored record")
			}
		default:
			t.Fatal("viewer missed the broadcast")
		}
	}
}

func TestIngestSubscriberAfterPublish(t *testing.T) {
	st := memstore.NewStore(memstore.StoreConfig{})
	h := hub.NewHub()
	svc := NewService(st, h)

	_, err := svc.Ingest(context.Background(), []byte(`{"latitude":1,"longitude":2}`))
	if err != nil {
		t.Fatal(err)
	}
	v := h.Subscribe(4)
	if len(v.C()) != 0 {
		t.Error("viewer subscribed after publish must not see it")
	}
}

func TestIngestStoreFailure(t *testing.T) {
	h := hub.NewHub()
	svc := NewService(&failingStore{}, h)
	v := h.Subscribe(4)

	_, err := svc.Ingest(context.Background(), []byte(`{"latitude":12.9,"longitude":77.6}`))
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
	if len(v.C()) != 0 {
		t.Error("nothing may be broadcast when the append failed")
	}
}
