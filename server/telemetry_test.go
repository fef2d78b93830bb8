package main

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestTelemetryFlushesOnStop(t *testing.T) {
	db := openTestDB(t)
	log, _ := test.NewNullLogger()
	tel := NewTelemetry(db, log)
	sid := NewSessionID()

	n := telemetryBatch + 10
	for i := 1; i <= n; i++ {
		tel.Track(StatsSample{SessionID: sid, Tick: int64(i), Moves: int64(2 * i)})
	}
	tel.Track(StatsSample{SessionID: NewSessionID(), Tick: 1})
	tel.Stop()
	tel.Stop()

	rows, err := db.SessionStats(sid, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != n {
		t.Fatalf("expected %d samples, got %d", n, len(rows))
	}
	if rows[0].Tick != int64(n) || rows[0].Moves != int64(2*n) {
		t.Errorf("expected newest sample first, got %+v", rows[0])
	}
	if rows[0].CreatedAt.IsZero() {
		t.Error("sample should carry a timestamp")
	}
}

func TestTelemetryWithoutDB(t *testing.T) {
	log, _ := test.NewNullLogger()
	tel := NewTelemetry(nil, log)
	tel.Track(StatsSample{SessionID: NewSessionID(), Tick: 1})
	tel.Stop()
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetSetting("missing"); err != nil || v != "" {
		t.Errorf("expected empty setting, got %q, %v", v, err)
	}
	db.SetSetting("motd", "hello")
	db.SetSetting("motd", "bye")
	if v, _ := db.GetSetting("motd"); v != "bye" {
		t.Errorf("expected the latest value, got %q", v)
	}
}
