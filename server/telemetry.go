package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StatsSample is one snapshot of a session's world counters
type StatsSample struct {
	SessionID    string
	Tick         int64
	Moves        int64
	Blocked      int64
	Placeholders int64
	Spills       int
	At           time.Time
}

// telemetryFlushEvery is how often the writer flushes a partial batch
var telemetryFlushEvery = 5 * time.Second

const telemetryBatch = 50

// Telemetry persists session samples with batched background writes
type Telemetry struct {
	db     *DB
	log    logrus.FieldLogger
	events chan StatsSample
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTelemetry creates and starts the background writer. A nil db drops
// every sample.
func NewTelemetry(db *DB, log logrus.FieldLogger) *Telemetry {
	t := &Telemetry{
		db:     db,
		log:    log.WithField("component", "telemetry"),
		events: make(chan StatsSample, 1024),
		stop:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.writer()
	return t
}

// Track enqueues a sample for async persistence (non-blocking)
func (t *Telemetry) Track(s StatsSample) {
	if s.At.IsZero() {
		s.At = time.Now().UTC()
	}
	select {
	case t.events <- s:
	default:
		// Channel full: drop the sample rather than stall a tick
	}
}

// Stop flushes pending samples and shuts the writer down
func (t *Telemetry) Stop() {
	t.once.Do(func() {
		close(t.stop)
		t.wg.Wait()
	})
}

// writer is the background goroutine that batches samples into the DB
func (t *Telemetry) writer() {
	defer t.wg.Done()

	batch := make([]StatsSample, 0, telemetryBatch)
	ticker := time.NewTicker(telemetryFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case s := <-t.events:
			batch = append(batch, s)
			if len(batch) >= telemetryBatch {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-t.stop:
		drain:
			for {
				select {
				case s := <-t.events:
					batch = append(batch, s)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				t.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of samples in one transaction
func (t *Telemetry) flush(batch []StatsSample) {
	if t.db == nil || len(batch) == 0 {
		return
	}
	if err := t.db.InsertStats(batch); err != nil {
		t.log.WithError(err).WithField("samples", len(batch)).Error("flushing samples")
	}
}
