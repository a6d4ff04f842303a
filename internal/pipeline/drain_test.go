package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type memDest struct {
	name     string
	mu       sync.Mutex
	buf      bytes.Buffer
	openErr  error
	writeErr error
	opened   int
	closed   int
	aborted  int
	exists   bool
}

func (d *memDest) Name() string { return d.name }

func (d *memDest) Open(context.Context) (io.WriteCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened++
	return &memSink{d: d}, nil
}

func (d *memDest) Preflight(context.Context) error {
	if d.exists {
		return errors.New(d.name + " exists")
	}
	return nil
}

func (d *memDest) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

type memSink struct{ d *memDest }

func (s *memSink) Write(b []byte) (int, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.writeErr != nil {
		return 0, s.d.writeErr
	}
	return s.d.buf.Write(b)
}

func (s *memSink) Close() error {
	s.d.mu.Lock()
	s.d.closed++
	s.d.mu.Unlock()
	return nil
}

type abortSink struct{ memSink }

func (s *abortSink) Abort(error) error {
	s.d.mu.Lock()
	s.d.aborted++
	s.d.mu.Unlock()
	return nil
}

type abortDest struct{ *memDest }

func (d abortDest) Open(context.Context) (io.WriteCloser, error) {
	return &abortSink{memSink{d: d.memDest}}, nil
}

func TestDrainCopiesAndCountsDownOnce(t *testing.T) {
	dst := &memDest{name: "s_1.txt"}
	latch := NewLatch(1)
	n, err := Drain(context.Background(), strings.NewReader(strings.Repeat("row\n", 100)), dst, 7, latch)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 400 || dst.String() != strings.Repeat("row\n", 100) {
		t.Fatalf("unexpected drained content (%d bytes)", n)
	}
	if latch.Count() != 0 || dst.closed != 1 {
		t.Fatalf("expected latch released and sink closed, got count=%d closed=%d", latch.Count(), dst.closed)
	}
}

func TestDrainReleasesOnFailure(t *testing.T) {
	boom := errors.New("disk full")
	dst := &memDest{name: "a_1.txt", writeErr: boom}
	latch := NewLatch(2)
	if _, err := Drain(context.Background(), strings.NewReader("data"), dst, 4, latch); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if latch.Count() != 1 || dst.closed != 1 {
		t.Fatalf("expected one countdown and a closed sink, got count=%d closed=%d", latch.Count(), dst.closed)
	}

	openFail := &memDest{name: "x", openErr: boom}
	if _, err := Drain(context.Background(), strings.NewReader("data"), openFail, 4, latch); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
	if latch.Count() != 0 {
		t.Fatalf("open failures must still count down")
	}
}

func TestDrainAbortsOnReadError(t *testing.T) {
	p := NewPipe(context.Background(), 2, 4)
	boom := errors.New("render failed")
	_, _ = p.Write([]byte("head"))
	_ = p.CloseWithError(boom)
	dst := abortDest{&memDest{name: "blob"}}
	if _, err := Drain(context.Background(), p, dst, 4, NewLatch(1)); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if dst.aborted != 1 || dst.closed != 0 {
		t.Fatalf("expected abort instead of close, got aborted=%d closed=%d", dst.aborted, dst.closed)
	}
}
