// Package core defines run records and the store contract implemented by
// the backends under internal/infra/ledger.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"isatab/internal/pipeline"
)

// Driver names a ledger backend.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// TemplateSnapshot keeps the header a study or assay file was written with.
type TemplateSnapshot struct {
	File   string   `msgpack:"file"`
	Kind   string   `msgpack:"kind"`
	Header []string `msgpack:"header"`
}

// RunRecord is the persisted account of one write invocation.
type RunRecord struct {
	ID            string                `msgpack:"id"`
	Investigation string                `msgpack:"investigation"`
	Mode          string                `msgpack:"mode"`
	Target        string                `msgpack:"target"`
	State         pipeline.RunState     `msgpack:"state"`
	Files         []pipeline.FileResult `msgpack:"files,omitempty"`
	Transitions   []pipeline.Transition `msgpack:"transitions,omitempty"`
	Templates     []TemplateSnapshot    `msgpack:"templates,omitempty"`
	Error         string                `msgpack:"error,omitempty"`
	StartedAt     time.Time             `msgpack:"started_at"`
	UpdatedAt     time.Time             `msgpack:"updated_at"`
	CompletedAt   *time.Time            `msgpack:"completed_at,omitempty"`
}

// Store persists run records. Save upserts by ID.
type Store interface {
	Save(ctx context.Context, rec RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, bool, error)
	List(ctx context.Context, investigation string) ([]RunRecord, error)
	Close() error
	Driver() Driver
}

// ErrMissingID is returned when saving a record without an ID.
var ErrMissingID = errors.New("ledger: run id required")

// Encode serialises a record for storage.
func Encode(rec RunRecord) ([]byte, error) { return msgpack.Marshal(rec) }

// Decode reverses Encode.
func Decode(b []byte) (RunRecord, error) {
	var rec RunRecord
	err := msgpack.Unmarshal(b, &rec)
	return rec, err
}
