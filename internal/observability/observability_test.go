package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "file.study", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "file.study", false, 3*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)
	rec.AddBytes("file.study", 42)
	snap := rec.Snapshot()
	if snap.Results["file.study"]["success"] != 1 || snap.Results["file.study"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if snap.DurationsMS["file.study"] < 5 {
		t.Fatalf("expected 5ms total, got %v", snap.DurationsMS["file.study"])
	}
	if snap.Bytes["file.study"] != 42 {
		t.Fatalf("expected bytes counted, got %d", snap.Bytes["file.study"])
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	Multi{rec, NopMetrics{}}.Observe(context.Background(), "run", true, time.Millisecond)
	Multi{rec}.AddBytes("file.assay", 10)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["isatab_operation_duration_seconds"] || !names["isatab_drained_bytes_total"] {
		t.Fatalf("missing metric families: %v", names)
	}
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestJSONTracerWritesEntries(t *testing.T) {
	var buf bytes.Buffer
	tr := NewJSONTracer(&buf)
	_, span := tr.Start(context.Background(), "run")
	span.End(errors.New("boom"))
	entries := tr.Entries()
	if len(entries) != 1 || entries[0].Status != "error" || entries[0].Error != "boom" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Operation != "run" {
		t.Fatalf("unexpected operation %q", decoded.Operation)
	}
}

func TestOTelTracerEndsSpans(t *testing.T) {
	tr := NewOTelTracer(noop.NewTracerProvider().Tracer("test"))
	ctx, span := tr.Start(context.Background(), "file.study")
	if ctx == nil {
		t.Fatalf("expected context")
	}
	span.End(nil)
	_, span = tr.Start(ctx, "file.assay")
	span.End(errors.New("failed"))
}

func TestTextLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown", "file", "s_1.txt")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "file=s_1.txt") {
		t.Fatalf("unexpected log output %q", out)
	}
	if _, ok := NewSlogLogger(nil).(NopLogger); !ok {
		t.Fatalf("nil slog logger should fall back to NopLogger")
	}
}
