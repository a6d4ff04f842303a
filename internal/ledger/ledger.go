// Package ledger records write runs: their state transitions, per-file
// outcomes and the templates each table was written with.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"isatab/internal/infra/ledger/memory"
	"isatab/internal/infra/ledger/postgres"
	"isatab/internal/infra/ledger/sqlite"
	"isatab/internal/ledger/core"
	"isatab/internal/observability"
	"isatab/internal/pipeline"
)

type (
	Store            = core.Store
	RunRecord        = core.RunRecord
	TemplateSnapshot = core.TemplateSnapshot
	Driver           = core.Driver
)

const (
	DriverNone     = core.DriverNone
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
)

// Settings selects a backend.
type Settings struct {
	Driver Driver `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Open returns the configured store, or nil for DriverNone.
func Open(ctx context.Context, s Settings) (Store, error) {
	switch Driver(strings.ToLower(string(s.Driver))) {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		st, err := sqlite.Open(ctx, s.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverPostgres:
		st, err := postgres.Open(ctx, s.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", s.Driver)
	}
}

// NewMemory returns an in-process store.
func NewMemory() Store { return memory.New() }

// Recorder keeps one run record current while the scheduler reports state
// changes. Save failures are logged, never returned to the run.
type Recorder struct {
	store  Store
	logger observability.Logger

	mu  sync.Mutex
	rec RunRecord
}

// NewRecorder starts a record. A nil store yields a recorder that only
// tracks state in memory.
func NewRecorder(store Store, logger observability.Logger, investigation, mode, target string) *Recorder {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	now := time.Now().UTC()
	return &Recorder{
		store:  store,
		logger: logger,
		rec: RunRecord{
			Investigation: investigation,
			Mode:          mode,
			Target:        target,
			State:         pipeline.StateScheduled,
			StartedAt:     now,
			UpdatedAt:     now,
		},
	}
}

// Hook matches pipeline.WithStateHook.
func (r *Recorder) Hook(runID string, state pipeline.RunState) {
	r.mu.Lock()
	r.rec.ID = runID
	r.rec.State = state
	r.rec.UpdatedAt = time.Now().UTC()
	r.rec.Transitions = append(r.rec.Transitions, pipeline.Transition{State: state, At: r.rec.UpdatedAt})
	rec := r.rec
	r.mu.Unlock()
	if !state.Terminal() {
		r.save(context.Background(), rec)
	}
}

// Snapshot adds the header a table was written with.
func (r *Recorder) Snapshot(file, kind string, header []string) {
	r.mu.Lock()
	r.rec.Templates = append(r.rec.Templates, TemplateSnapshot{File: file, Kind: kind, Header: header})
	r.mu.Unlock()
}

// Finish stores the final report and returns the completed record.
func (r *Recorder) Finish(ctx context.Context, report pipeline.Report) RunRecord {
	r.mu.Lock()
	r.rec.ID = report.RunID
	r.rec.State = report.State
	r.rec.Files = report.Files
	r.rec.Transitions = report.Transitions
	if err := report.Err(); err != nil {
		r.rec.Error = err.Error()
	}
	done := report.CompletedAt
	r.rec.CompletedAt = &done
	r.rec.UpdatedAt = done
	rec := r.rec
	r.mu.Unlock()
	r.save(ctx, rec)
	return rec
}

func (r *Recorder) save(ctx context.Context, rec RunRecord) {
	if r.store == nil || rec.ID == "" {
		return
	}
	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Warn("ledger save failed", "run", rec.ID, "error", err)
	}
}
