package metrics

import (
	"sync"
	"time"
)

// Well-known metric names recorded by the notifier
const (
	WebhookReceived       = "webhook.received"
	WebhookRejected       = "webhook.rejected"
	WebhookProcessed      = "webhook.processed"
	WebhookUnknownKind    = "webhook.unknown_kind"
	NotificationsSent     = "notifications.sent"
	NotificationsFailed   = "notifications.failed"
	AlertsSent            = "alerts.sent"
	AlertsFailed          = "alerts.failed"
	MirrorWrites          = "mirror.writes"
	MirrorWriteFailures   = "mirror.write_failures"
	BackfillCommentsSaved = "backfill.comments_saved"
)

// TimerSnapshot captures timing information for one named timer
type TimerSnapshot struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// Metrics is an in-process metrics collector exposed over /metrics
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	timers   map[string]*timer
	started  time.Time
}

type timer struct {
	count       int64
	totalTimeMs int64
	minTimeMs   int64
	maxTimeMs   int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		timers:   make(map[string]*timer),
		started:  time.Now(),
	}
}

// IncrCounter increments a named counter
func (m *Metrics) IncrCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a delta to a named counter
func (m *Metrics) AddCounter(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// RecordTime records one duration observation for a named timer
func (m *Metrics) RecordTime(name string, d time.Duration) {
	ms := d.Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok {
		t = &timer{minTimeMs: ms, maxTimeMs: ms}
		m.timers[name] = t
	}
	t.count++
	t.totalTimeMs += ms
	if ms < t.minTimeMs {
		t.minTimeMs = ms
	}
	if ms > t.maxTimeMs {
		t.maxTimeMs = ms
	}
}

// Snapshot returns a point-in-time copy of all metrics
func (m *Metrics) Snapshot() (map[string]int64, map[string]TimerSnapshot, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, value := range m.counters {
		counters[name] = value
	}

	timers := make(map[string]TimerSnapshot, len(m.timers))
	for name, t := range m.timers {
		snapshot := TimerSnapshot{
			Count:       t.count,
			TotalTimeMs: t.totalTimeMs,
			MinTimeMs:   t.minTimeMs,
			MaxTimeMs:   t.maxTimeMs,
		}
		if t.count > 0 {
			snapshot.AverageTimeMs = float64(t.totalTimeMs) / float64(t.count)
		}
		timers[name] = snapshot
	}

	return counters, timers, time.Since(m.started)
}
