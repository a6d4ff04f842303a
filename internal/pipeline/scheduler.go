package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"isatab/internal/observability"
)

// Task is one output file.
type Task struct {
	// Key names the file; it is also the exchange key of study and assay
	// tasks.
	Key string
	// Kind is "study", "assay" or "investigation"; used for metrics.
	Kind string
	// Destination receives the produced bytes. A nil destination makes the
	// task publish-only: Produce runs against io.Discard and nothing is
	// drained.
	Destination Destination
	// Produce writes the file. It must return promptly once ctx is done.
	Produce func(ctx context.Context, w io.Writer) error
	// OnFailure runs when Produce or the drain fails.
	OnFailure func(err error)
	// Waits marks tasks that block on other tasks' output; they are
	// submitted after every other task.
	Waits bool
}

// Config bounds the resources of a run.
type Config struct {
	PoolSize   int
	PipeChunks int
	ChunkSize  int
}

// DefaultConfig matches the configuration defaults.
var DefaultConfig = Config{PoolSize: 4, PipeChunks: 16, ChunkSize: 32 * 1024}

// FileResult is the outcome of one task.
type FileResult struct {
	Key         string        `json:"key" msgpack:"key"`
	Kind        string        `json:"kind" msgpack:"kind"`
	Destination string        `json:"destination,omitempty" msgpack:"destination,omitempty"`
	Bytes       int64         `json:"bytes" msgpack:"bytes"`
	Duration    time.Duration `json:"duration" msgpack:"duration"`
	Err         error         `json:"-" msgpack:"-"`
	Error       string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Report describes a finished run.
type Report struct {
	RunID       string       `json:"run_id" msgpack:"run_id"`
	State       RunState     `json:"state" msgpack:"state"`
	Files       []FileResult `json:"files" msgpack:"files"`
	Transitions []Transition `json:"transitions" msgpack:"transitions"`
	StartedAt   time.Time    `json:"started_at" msgpack:"started_at"`
	CompletedAt time.Time    `json:"completed_at" msgpack:"completed_at"`
}

// Err joins the per-file errors.
func (r Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Key, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Succeeded reports whether every file was written.
func (r Report) Succeeded() bool { return r.State == StateCompleted }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithStateHook is called on every run state change.
func WithStateHook(fn func(runID string, state RunState)) Option {
	return func(s *Scheduler) { s.onState = fn }
}

// Scheduler runs tasks on a bounded pool. Each running task occupies one
// slot for its producer and its drain.
type Scheduler struct {
	cfg     Config
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	onState func(string, RunState)
}

// NewScheduler returns a scheduler; zero config fields take DefaultConfig.
func NewScheduler(cfg Config, opts ...Option) *Scheduler {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = DefaultConfig.PoolSize
	}
	if cfg.PipeChunks < 1 {
		cfg.PipeChunks = DefaultConfig.PipeChunks
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultConfig.ChunkSize
	}
	s := &Scheduler{
		cfg:     cfg,
		logger:  observability.NopLogger{},
		metrics: observability.NopMetrics{},
		tracer:  observability.NopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run preflights every destination, then executes the tasks. Failures are
// isolated per file: files that were drained stay in place. Run returns
// only after every producer and drain has finished.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) Report {
	runID := uuid.NewString()
	report := Report{RunID: runID, StartedAt: time.Now().UTC()}
	tr := newTracker(func(st RunState) {
		s.logger.Debug("run state changed", "run", runID, "state", string(st))
		if s.onState != nil {
			s.onState(runID, st)
		}
	})
	ctx = context.WithValue(ctx, trackerKey{}, tr)
	ctx, span := s.tracer.Start(ctx, "run")

	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool { return !ordered[i].Waits && ordered[j].Waits })
	results := make([]FileResult, len(ordered))
	for i, t := range ordered {
		results[i] = FileResult{Key: t.Key, Kind: t.Kind}
		if t.Destination != nil {
			results[i].Destination = t.Destination.Name()
		}
	}

	if err := s.preflight(ctx, ordered, results); err != nil {
		return s.finish(ctx, span, report, tr, results, err)
	}

	latch := NewLatch(len(ordered))
	producing := atomic.Int64{}
	producing.Store(int64(len(ordered)))
	producerDone := func() {
		if producing.Add(-1) == 0 {
			tr.advance(StateDraining)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.PoolSize)
	tr.advance(StateRendering)
	for i := range ordered {
		i := i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			producerDone()
			latch.CountDown()
			continue
		}
		g.Go(func() error {
			s.runTask(ctx, ordered[i], &results[i], latch, producerDone)
			return nil
		})
	}
	waitErr := latch.Wait(ctx)
	_ = g.Wait()
	return s.finish(ctx, span, report, tr, results, waitErr)
}

func (s *Scheduler) preflight(ctx context.Context, tasks []Task, results []FileResult) error {
	var errs []error
	for i, t := range tasks {
		pf, ok := t.Destination.(Preflighter)
		if !ok {
			continue
		}
		if err := pf.Preflight(ctx); err != nil {
			results[i].Err = err
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runTask(ctx context.Context, t Task, res *FileResult, latch *Latch, producerDone func()) {
	start := time.Now()
	op := "file." + t.Kind
	ctx, span := s.tracer.Start(ctx, op)
	s.logger.Debug("file started", "file", t.Key, "kind", t.Kind)

	var err error
	if t.Destination == nil {
		err = t.Produce(ctx, io.Discard)
		if err != nil && t.OnFailure != nil {
			t.OnFailure(err)
		}
		producerDone()
		latch.CountDown()
	} else {
		err = s.pump(ctx, t, res, latch, producerDone)
	}

	res.Duration = time.Since(start)
	res.Err = err
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, res.Duration)
	if bc, ok := s.metrics.(observability.ByteCounter); ok && res.Bytes > 0 {
		bc.AddBytes(op, res.Bytes)
	}
	if err != nil {
		s.logger.Error("file failed", "file", t.Key, "kind", t.Kind, "error", err)
		return
	}
	s.logger.Info("file written", "file", t.Key, "kind", t.Kind, "bytes", res.Bytes, "destination", res.Destination)
}

// pump runs the producer into a pipe and drains the pipe into the
// destination concurrently.
func (s *Scheduler) pump(ctx context.Context, t Task, res *FileResult, latch *Latch, producerDone func()) error {
	pipe := NewPipe(ctx, s.cfg.PipeChunks, s.cfg.ChunkSize)
	produced := make(chan error, 1)
	go func() {
		bw := bufio.NewWriterSize(pipe, s.cfg.ChunkSize)
		err := t.Produce(ctx, bw)
		if err == nil {
			err = bw.Flush()
		}
		if err != nil && t.OnFailure != nil {
			t.OnFailure(err)
		}
		_ = pipe.CloseWithError(err)
		producerDone()
		produced <- err
	}()

	n, drainErr := Drain(ctx, pipe, t.Destination, s.cfg.ChunkSize, latch)
	res.Bytes = n
	if drainErr != nil {
		pipe.CloseRead(drainErr)
	}
	prodErr := <-produced
	// A producer failure reaches the drain as the pipe's read error, so the
	// drain error is the more specific one whenever both are set.
	if drainErr != nil {
		return drainErr
	}
	return prodErr
}

func (s *Scheduler) finish(ctx context.Context, span observability.Span, report Report, tr *tracker, results []FileResult, runErr error) Report {
	failed := runErr != nil
	for i := range results {
		if results[i].Err != nil {
			results[i].Error = results[i].Err.Error()
			failed = true
		}
	}
	if failed {
		tr.advance(StateFailed)
	} else {
		tr.advance(StateCompleted)
	}
	report.State, report.Transitions = tr.snapshot()
	report.Files = results
	report.CompletedAt = time.Now().UTC()
	if runErr == nil {
		runErr = report.Err()
	}
	span.End(runErr)
	s.metrics.Observe(ctx, "run", !failed, report.CompletedAt.Sub(report.StartedAt))
	return report
}
