package sqlitestore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"nuha.dev/safetracker/internal/reading"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestAppendAndRecent(t *testing.T) {
	st := openTestStore(t)
	dev := "d1"
	ts := "2026-01-01T00:00:00Z"
	for i, r := range []reading.Reading{
		{Latitude: 1, Longitude: 1},
		{DeviceId: &dev, Latitude: 2, Longitude: 2, Timestamp: &ts},
		{Latitude: 3, Longitude: 3},
	} {
		rec, err := st.Append(context.Background(), r)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Id == "" || rec.ReceivedAt.IsZero() {
			t.Fatalf("append %d missing assigned fields", i)
		}
	}

	recs, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3, got %d", len(recs))
	}
	if recs[0].Latitude != 3 || recs[2].Latitude != 1 {
		t.Error("not newest first")
	}
	if recs[1].DeviceId == nil || *recs[1].DeviceId != "d1" {
		t.Error("deviceId lost on round trip")
	}
	if recs[1].Timestamp == nil || *recs[1].Timestamp != ts {
		t.Error("timestamp lost on round trip")
	}
	if recs[0].DeviceId != nil || recs[0].Timestamp != nil {
		t.Error("absent optional fields must stay absent")
	}
}

func TestConcurrentAppendOrdering(t *testing.T) {
	st := openTestStore(t)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := st.Append(context.Background(), reading.Reading{Latitude: 1, Longitude: 2})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	recs, err := st.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 100 {
		t.Fatalf("want 100, got %d", len(recs))
	}
	seen := make(map[string]bool, len(recs))
	for i, rec := range recs {
		if seen[rec.Id] {
			t.Fatalf("duplicate id %s", rec.Id)
		}
		seen[rec.Id] = true
		if i > 0 && !recs[i-1].ReceivedAt.After(rec.ReceivedAt) {
			t.Fatalf("recent list not newest first by receivedAt at index %d", i)
		}
	}
}
