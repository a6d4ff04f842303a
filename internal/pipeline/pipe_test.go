package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestPipeCarriesBytesAndEOF(t *testing.T) {
	p := NewPipe(context.Background(), 2, 4)
	go func() {
		_, _ = p.Write([]byte("hello, pipe"))
		_ = p.Close()
	}()
	got, err := io.ReadAll(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello, pipe" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestPipeBlocksWhenFull(t *testing.T) {
	p := NewPipe(context.Background(), 1, 2)
	done := make(chan struct{})
	go func() {
		_, _ = p.Write([]byte("aabbcc"))
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("writer should block on a full pipe")
	case <-time.After(20 * time.Millisecond):
	}
	buf := make([]byte, 2)
	for i := 0; i < 3; i++ {
		if _, err := io.ReadFull(p, buf); err != nil {
			t.Fatalf("read chunk %d: %v", i, err)
		}
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("writer did not resume after reads")
	}
}

func TestPipeWriterErrorReachesReader(t *testing.T) {
	p := NewPipe(context.Background(), 4, 8)
	boom := errors.New("render failed")
	_, _ = p.Write([]byte("partial"))
	_ = p.CloseWithError(boom)
	got, err := io.ReadAll(p)
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	if string(got) != "partial" {
		t.Fatalf("queued data should be readable before the error, got %q", got)
	}
}

func TestPipeCloseReadUnblocksWriter(t *testing.T) {
	p := NewPipe(context.Background(), 1, 1)
	abandon := errors.New("destination gone")
	errc := make(chan error, 1)
	go func() {
		_, err := p.Write(bytes.Repeat([]byte("x"), 10))
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	p.CloseRead(abandon)
	select {
	case err := <-errc:
		if !errors.Is(err, abandon) {
			t.Fatalf("expected reader error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("writer still blocked")
	}
}

func TestPipeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPipe(ctx, 1, 1)
	cancel()
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestLatch(t *testing.T) {
	l := NewLatch(2)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wait to time out, got %v", err)
	}
	l.CountDown()
	l.CountDown()
	l.CountDown()
	if l.Count() != 0 {
		t.Fatalf("count must not go below zero, got %d", l.Count())
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := NewLatch(0).Wait(context.Background()); err != nil {
		t.Fatalf("zero latch should be open: %v", err)
	}
}
