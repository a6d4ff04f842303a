// Package pipeline runs one producer/drain pair per output file on a
// bounded worker pool.
package pipeline

import (
	"context"
	"io"
	"sync"
)

// Pipe is a bounded in-memory byte pipe. Writes are split into chunks of at
// most chunkSize bytes and queued; the writer blocks once chunks chunks are
// queued. The write end belongs to a single goroutine.
type Pipe struct {
	ctx       context.Context
	ch        chan []byte
	chunkSize int

	wonce sync.Once
	werr  error

	ronce sync.Once
	rerr  error
	rdone chan struct{}

	pending []byte
}

// NewPipe returns a pipe holding at most chunks chunks of chunkSize bytes.
// Both ends give up with ctx's error once ctx is done.
func NewPipe(ctx context.Context, chunks, chunkSize int) *Pipe {
	if chunks < 1 {
		chunks = 1
	}
	if chunkSize < 1 {
		chunkSize = 32 * 1024
	}
	return &Pipe{ctx: ctx, ch: make(chan []byte, chunks), chunkSize: chunkSize, rdone: make(chan struct{})}
}

// Write queues a copy of b.
func (p *Pipe) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n := len(b)
		if n > p.chunkSize {
			n = p.chunkSize
		}
		chunk := make([]byte, n)
		copy(chunk, b[:n])
		select {
		case p.ch <- chunk:
		case <-p.rdone:
			return written, p.readErr()
		case <-p.ctx.Done():
			return written, p.ctx.Err()
		}
		written += n
		b = b[n:]
	}
	return written, nil
}

// Close signals end of data.
func (p *Pipe) Close() error { return p.CloseWithError(nil) }

// CloseWithError signals end of data; the reader receives err instead of
// io.EOF once the queue is drained. Only the first call has effect.
func (p *Pipe) CloseWithError(err error) error {
	p.wonce.Do(func() {
		p.werr = err
		close(p.ch)
	})
	return nil
}

// Read returns queued bytes, io.EOF after Close, or the writer's error.
func (p *Pipe) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case chunk, ok := <-p.ch:
			if !ok {
				if p.werr != nil {
					return 0, p.werr
				}
				return 0, io.EOF
			}
			p.pending = chunk
		case <-p.rdone:
			return 0, io.ErrClosedPipe
		case <-p.ctx.Done():
			return 0, p.ctx.Err()
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// CloseRead abandons the read end; blocked and later writes fail with err
// (io.ErrClosedPipe when nil).
func (p *Pipe) CloseRead(err error) {
	p.ronce.Do(func() {
		p.rerr = err
		close(p.rdone)
	})
}

func (p *Pipe) readErr() error {
	if p.rerr != nil {
		return p.rerr
	}
	return io.ErrClosedPipe
}
