package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"isatab/internal/pipeline"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Settings{})
	if err != nil || st != nil {
		t.Fatalf("none driver: %v %v", st, err)
	}
	st, err = Open(ctx, Settings{Driver: "MEMORY"})
	if err != nil || st.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", st, err)
	}
	if _, err := Open(ctx, Settings{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestRecorderLifecycle(t *testing.T) {
	for _, tc := range []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"memory", func(*testing.T) Store { return NewMemory() }},
		{"sqlite", func(t *testing.T) Store {
			st, err := Open(context.Background(), Settings{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "runs.db")})
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return st
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st := tc.open(t)
			defer func() { _ = st.Close() }()

			rec := NewRecorder(st, nil, "i_1", "files", "/tmp/out")
			rec.Hook("run-1", pipeline.StateRendering)
			got, ok, err := st.Get(ctx, "run-1")
			if err != nil || !ok || got.State != pipeline.StateRendering {
				t.Fatalf("intermediate record: %+v %v %v", got, ok, err)
			}

			rec.Snapshot("s_1.txt", "study", []string{"Source Name", "Sample Name"})
			now := time.Now().UTC()
			final := rec.Finish(ctx, pipeline.Report{
				RunID:       "run-1",
				State:       pipeline.StateFailed,
				Files:       []pipeline.FileResult{{Key: "s_1.txt", Kind: "study", Bytes: 10, Err: errors.New("boom")}},
				CompletedAt: now,
			})
			if final.Error == "" || final.CompletedAt == nil {
				t.Fatalf("final record incomplete: %+v", final)
			}

			got, ok, err = st.Get(ctx, "run-1")
			if err != nil || !ok {
				t.Fatalf("get final: %v %v", ok, err)
			}
			if got.State != pipeline.StateFailed || len(got.Templates) != 1 || got.Templates[0].Header[1] != "Sample Name" {
				t.Fatalf("unexpected stored record: %+v", got)
			}
			if len(got.Files) != 1 || got.Files[0].Bytes != 10 {
				t.Fatalf("files not stored: %+v", got.Files)
			}

			NewRecorder(st, nil, "i_2", "stream", "stdout").Finish(ctx, pipeline.Report{RunID: "run-2", State: pipeline.StateCompleted, CompletedAt: now})
			all, err := st.List(ctx, "")
			if err != nil || len(all) != 2 {
				t.Fatalf("list all: %d %v", len(all), err)
			}
			only, err := st.List(ctx, "i_2")
			if err != nil || len(only) != 1 || only[0].ID != "run-2" {
				t.Fatalf("list filtered: %+v %v", only, err)
			}
			if _, ok, _ := st.Get(ctx, "missing"); ok {
				t.Fatalf("missing run reported present")
			}
		})
	}
}

func TestRecorderWithoutStore(t *testing.T) {
	rec := NewRecorder(nil, nil, "i", "files", "dir")
	rec.Hook("r", pipeline.StateRendering)
	out := rec.Finish(context.Background(), pipeline.Report{RunID: "r", State: pipeline.StateCompleted})
	if out.ID != "r" || out.State != pipeline.StateCompleted {
		t.Fatalf("unexpected record: %+v", out)
	}
}
