package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	recorder := NewExpvarRecorder("")
	svc := NewInMemoryService(nil, WithMetricsRecorder(recorder))
	ctx := context.Background()

	if _, _, err := svc.CreateSite(ctx, Site{Name: "Ambanifony", Code: "AMB"}); err != nil {
		t.Fatalf("create site: %v", err)
	}
	if _, _, err := svc.CreateSite(ctx, Site{Name: "Ankarana", Code: "ANK"}); err != nil {
		t.Fatalf("create site: %v", err)
	}

	stats := recorder.Snapshot()["create_site"]
	if stats.Calls != 2 || stats.Errors != 0 {
		t.Fatalf("create_site stats = %+v", stats)
	}
	if stats.SecondsTotal < 0 {
		t.Fatalf("negative duration total: %+v", stats)
	}
	if recorder.Name() == "" {
		t.Fatal("recorder must self-assign a name")
	}
}

func TestExpvarRecorderCountsErrors(t *testing.T) {
	recorder := NewExpvarRecorder("")
	svc := NewInMemoryService(nil, WithMetricsRecorder(recorder))
	ctx := context.Background()

	if _, _, err := svc.CreateSite(ctx, Site{Base: Base{ID: "site-1"}, Name: "Ambanifony", Code: "AMB"}); err != nil {
		t.Fatalf("create site: %v", err)
	}
	if _, _, err := svc.CreateSite(ctx, Site{Base: Base{ID: "site-1"}, Name: "Dup", Code: "DUP"}); err == nil {
		t.Fatal("duplicate site must fail")
	}

	stats := recorder.Snapshot()["create_site"]
	if stats.Calls != 2 || stats.Errors != 1 {
		t.Fatalf("create_site stats = %+v", stats)
	}
}

func TestPrometheusRecorderLabelsOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	recorder.Observe(ctx, "create_site", true, 5*time.Millisecond)
	recorder.Observe(ctx, "create_site", false, time.Millisecond)
	recorder.Observe(ctx, "", true, time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "seaweedcore_service_operation_results_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var operation, status string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "operation":
					operation = label.GetValue()
				case "status":
					status = label.GetValue()
				}
			}
			counts[operation+"/"+status] = metric.GetCounter().GetValue()
		}
	}
	if counts["create_site/success"] != 1 || counts["create_site/error"] != 1 {
		t.Fatalf("unexpected outcome counts: %v", counts)
	}
	for key := range counts {
		if strings.HasPrefix(key, "/") {
			t.Fatalf("empty operation must not be recorded: %v", counts)
		}
	}
}

func TestTraceLogRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewTraceLog(&buf)
	svc := NewInMemoryService(nil, WithTracer(tracer))
	ctx := context.Background()

	if _, _, err := svc.CreateSite(ctx, Site{Base: Base{ID: "site-1"}, Name: "Ambanifony", Code: "AMB"}); err != nil {
		t.Fatalf("create site: %v", err)
	}
	if _, _, err := svc.CreateSite(ctx, Site{Base: Base{ID: "site-1"}, Name: "Dup", Code: "DUP"}); err == nil {
		t.Fatal("duplicate site must fail")
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "create_site" || entries[0].Error != "" {
		t.Fatalf("unexpected first span: %+v", entries[0])
	}
	if entries[1].Error == "" {
		t.Fatalf("second span should carry the error: %+v", entries[1])
	}
	if entries[1].EndedAt.Before(entries[1].StartedAt) {
		t.Fatalf("span ends before it starts: %+v", entries[1])
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	var decoded TraceEntry
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode trace line: %v", err)
	}
	if decoded.Operation != "create_site" || decoded.Error == "" {
		t.Fatalf("unexpected decoded entry: %+v", decoded)
	}
}
