package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the outcomes of one operation.
type OperationStats struct {
	Calls        int64   `json:"calls"`
	Errors       int64   `json:"errors"`
	SecondsTotal float64 `json:"seconds_total"`
}

// ExpvarRecorder aggregates per-operation call counts and cumulative
// durations and publishes them under an expvar name, for deployments
// that scrape /debug/vars instead of a metrics endpoint.
type ExpvarRecorder struct {
	name  string
	mu    sync.Mutex
	stats map[string]OperationStats
}

// NewExpvarRecorder publishes a recorder under name. An empty name gets a
// process-unique one, which keeps repeated constructions in tests from
// colliding on the global expvar namespace.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("seaweedcore_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	r := &ExpvarRecorder{name: name, stats: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return r.Snapshot() }))
	return r
}

// Name returns the expvar name the recorder publishes under.
func (r *ExpvarRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	s := r.stats[operation]
	s.Calls++
	if !success {
		s.Errors++
	}
	s.SecondsTotal += duration.Seconds()
	r.stats[operation] = s
	r.mu.Unlock()
}

// Snapshot returns a copy of the aggregated stats keyed by operation.
func (r *ExpvarRecorder) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.stats))
	for op, s := range r.stats {
		out[op] = s
	}
	return out
}

// TraceEntry is one finished operation span.
type TraceEntry struct {
	Operation  string    `json:"operation"`
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// TraceLog is a Tracer that appends finished spans as JSON lines to a
// writer and keeps them in memory for inspection.
type TraceLog struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

// NewTraceLog returns a trace log writing to w. A nil writer records
// entries in memory only.
func NewTraceLog(w io.Writer) *TraceLog {
	t := &TraceLog{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Start implements Tracer.
func (t *TraceLog) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &traceLogSpan{log: t, operation: operation, started: time.Now().UTC()}
}

// Entries returns a copy of every recorded span.
func (t *TraceLog) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *TraceLog) append(entry TraceEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
	t.mu.Unlock()
}

type traceLogSpan struct {
	log       *TraceLog
	operation string
	started   time.Time
}

func (s *traceLogSpan) End(err error) {
	ended := time.Now().UTC()
	entry := TraceEntry{
		Operation:  s.operation,
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.log.append(entry)
}
