// Package isatab writes an isa.Investigation as ISA-Tab: one investigation
// file plus one file per study and assay. Study and assay files are
// rendered concurrently; the investigation file waits for their column
// summaries before writing its protocol and factor sections.
package isatab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	goerrors "github.com/agilira/go-errors"

	"isatab/internal/blob"
	"isatab/internal/config"
	"isatab/internal/destination"
	"isatab/internal/ledger"
	"isatab/internal/observability"
	"isatab/internal/pipeline"
	"isatab/internal/render"
	"isatab/internal/template"
	"isatab/pkg/isa"
)

type (
	// Report describes a finished write.
	Report = pipeline.Report
	// FileResult is the outcome of one file.
	FileResult = pipeline.FileResult
	// Store is a blob store target for WriteToStore.
	Store = blob.Store
)

// Writer renders investigations. A Writer holds no per-run state and may be
// used concurrently.
type Writer struct {
	cfg     config.Config
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	ledger  ledger.Store
}

// Option configures a Writer.
type Option func(*Writer)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option { return func(w *Writer) { w.cfg = cfg } }

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(w *Writer) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(w *Writer) {
		if t != nil {
			w.tracer = t
		}
	}
}

// WithLedger records every run in s.
func WithLedger(s ledger.Store) Option { return func(w *Writer) { w.ledger = s } }

// New returns a Writer using config.Default unless overridden.
func New(opts ...Option) *Writer {
	w := &Writer{
		cfg:     config.Default(),
		logger:  observability.NopLogger{},
		metrics: observability.NopMetrics{},
		tracer:  observability.NopTracer{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteToFile writes every file of inv into dir and reports success. The
// investigation file is named <name>_investigation.txt. Existing files are
// replaced only when overwrite is set; continuation segments always append.
func (w *Writer) WriteToFile(ctx context.Context, inv *isa.Investigation, dir, name string, overwrite bool) bool {
	_, err := w.WriteFiles(ctx, inv, dir, name, overwrite)
	return err == nil
}

// WriteFiles is WriteToFile with the full report.
func (w *Writer) WriteFiles(ctx context.Context, inv *isa.Investigation, dir, name string, overwrite bool) (Report, error) {
	if err := checkInvestigation(inv); err != nil {
		return Report{}, err
	}
	mode := destination.ModeCreate
	if overwrite {
		mode = destination.ModeTruncate
	}
	fileAt := func(file string, seg isa.Segment) pipeline.Destination {
		m := mode
		if seg == isa.SegmentContinuation {
			m = destination.ModeAppend
		}
		return &destination.File{Path: filepath.Join(dir, file), Mode: m, LockTimeout: w.cfg.LockTimeout}
	}
	p := w.plan(inv, fileAt, isa.FileName(name), fileAt(isa.FileName(name), isa.SegmentHead))
	return w.run(ctx, inv, "files", dir, p, w.cfg.Pipeline())
}

// streamKey keys the investigation task of stream runs, which have no file.
const streamKey = "investigation"

// WriteToStream writes only the investigation file to out. Study and assay
// files are unified for their summaries but not rendered. out is closed
// afterwards only when closeAfter is set.
func (w *Writer) WriteToStream(ctx context.Context, inv *isa.Investigation, out io.Writer, closeAfter bool) bool {
	_, err := w.StreamInvestigation(ctx, inv, out, closeAfter)
	return err == nil
}

// StreamInvestigation is WriteToStream with the full report.
func (w *Writer) StreamInvestigation(ctx context.Context, inv *isa.Investigation, out io.Writer, closeAfter bool) (Report, error) {
	if err := checkInvestigation(inv); err != nil {
		return Report{}, err
	}
	if out == nil {
		return Report{}, goerrors.New(isa.ErrCodeRequiredField, "output stream is required")
	}
	noTable := func(string, isa.Segment) pipeline.Destination { return nil }
	p := w.plan(inv, noTable, streamKey, &destination.Stream{Label: "stream", W: out, CloseAfter: closeAfter})
	return w.run(ctx, inv, "stream", "stream", p, w.cfg.Pipeline())
}

// WriteRecursivelyToStream writes every study file, each followed by its
// assay files, and finally the investigation file, one after another into
// out. Nothing overlaps, so it gains nothing from the worker pool.
func (w *Writer) WriteRecursivelyToStream(ctx context.Context, inv *isa.Investigation, out io.Writer, closeAfter bool) bool {
	_, err := w.StreamRecursively(ctx, inv, out, closeAfter)
	return err == nil
}

// StreamRecursively is WriteRecursivelyToStream with the full report.
func (w *Writer) StreamRecursively(ctx context.Context, inv *isa.Investigation, out io.Writer, closeAfter bool) (Report, error) {
	if err := checkInvestigation(inv); err != nil {
		return Report{}, err
	}
	if out == nil {
		return Report{}, goerrors.New(isa.ErrCodeRequiredField, "output stream is required")
	}
	table := func(file string, _ isa.Segment) pipeline.Destination {
		return &destination.Stream{Label: "stream:" + file, W: out}
	}
	p := w.plan(inv, table, streamKey, &destination.Stream{Label: "stream:investigation", W: out, CloseAfter: closeAfter})
	if p.investigation < 0 && closeAfter {
		// No investigation file to carry the close; close after the tables.
		if last := len(p.tasks) - 1; last >= 0 {
			if s, ok := p.tasks[last].Destination.(*destination.Stream); ok {
				s.CloseAfter = true
			}
		}
	}
	cfg := w.cfg.Pipeline()
	cfg.PoolSize = 1
	return w.run(ctx, inv, "recursive", "stream", p, cfg)
}

// WriteToStore uploads every file of inv into store under prefix. Objects
// that already exist are not replaced, and continuation segments are
// rejected because objects cannot be appended to.
func (w *Writer) WriteToStore(ctx context.Context, inv *isa.Investigation, store Store, prefix, name string) bool {
	_, err := w.WriteObjects(ctx, inv, store, prefix, name)
	return err == nil
}

// WriteObjects is WriteToStore with the full report.
func (w *Writer) WriteObjects(ctx context.Context, inv *isa.Investigation, store Store, prefix, name string) (Report, error) {
	if err := checkInvestigation(inv); err != nil {
		return Report{}, err
	}
	if store == nil {
		return Report{}, goerrors.New(isa.ErrCodeRequiredField, "blob store is required")
	}
	for _, s := range inv.Studies() {
		if s.Segment == isa.SegmentContinuation {
			return Report{}, appendUnsupported(s.FileName)
		}
		for _, a := range s.Assays() {
			if a.Segment == isa.SegmentContinuation {
				return Report{}, appendUnsupported(a.FileName)
			}
		}
	}
	object := func(file string, _ isa.Segment) pipeline.Destination {
		return &destination.Blob{
			Store:    store,
			Key:      path.Join(prefix, file),
			Metadata: map[string]string{"investigation": inv.Identifier},
		}
	}
	p := w.plan(inv, object, isa.FileName(name), object(isa.FileName(name), isa.SegmentHead))
	return w.run(ctx, inv, "store", string(store.Driver())+"://"+prefix, p, w.cfg.Pipeline())
}

func appendUnsupported(file string) error {
	return goerrors.New(isa.ErrCodeDestinationCreate, "continuation segments cannot be written to a blob store").
		WithContext("file", file)
}

func checkInvestigation(inv *isa.Investigation) error {
	if inv == nil {
		return goerrors.New(isa.ErrCodeRequiredField, "investigation is required")
	}
	return nil
}

func (w *Writer) run(ctx context.Context, inv *isa.Investigation, mode, target string, p *plan, cfg pipeline.Config) (Report, error) {
	rec := ledger.NewRecorder(w.ledger, w.logger, inv.Identifier, mode, target)
	p.recorder = rec
	s := pipeline.NewScheduler(cfg,
		pipeline.WithLogger(w.logger),
		pipeline.WithMetrics(w.metrics),
		pipeline.WithTracer(w.tracer),
		pipeline.WithStateHook(rec.Hook),
	)
	report := s.Run(ctx, p.tasks)
	rec.Finish(ctx, report)
	if report.Succeeded() {
		w.logger.Info("investigation written", "investigation", inv.Identifier, "run", report.RunID, "mode", mode, "files", len(report.Files))
		return report, nil
	}
	err := report.Err()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = errors.New("isatab: run failed")
	}
	w.logger.Error("investigation write failed", "investigation", inv.Identifier, "run", report.RunID, "mode", mode, "error", err)
	return report, err
}

// Header is the column layout of one study or assay file.
type Header struct {
	File    string   `json:"file" yaml:"file"`
	Kind    string   `json:"kind" yaml:"kind"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Headers unifies every study and assay of inv without writing anything.
func Headers(inv *isa.Investigation) ([]Header, error) {
	if err := checkInvestigation(inv); err != nil {
		return nil, err
	}
	var out []Header
	add := func(kind template.Kind, file string, rows []isa.Row) error {
		f, err := template.Unify(kind, rows)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		out = append(out, Header{File: file, Kind: kind.String(), Columns: columns(render.Table{EOL: "\n"}.Header(f))})
		return nil
	}
	for _, s := range inv.Studies() {
		if err := add(template.StudyFile, s.FileName, s.Rows()); err != nil {
			return nil, err
		}
		for _, a := range s.Assays() {
			if err := add(template.AssayFile, a.FileName, a.Rows()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func columns(header []byte) []string {
	return strings.Split(strings.TrimRight(string(header), "\r\n"), "\t")
}
