package destination

import (
	"context"
	"io"
	"sync"

	goerrors "github.com/agilira/go-errors"

	"isatab/pkg/isa"
)

// Stream writes to a caller-owned writer. The writer is closed after the
// drain only when CloseAfter is set and it implements io.Closer.
type Stream struct {
	Label      string
	W          io.Writer
	CloseAfter bool

	mu sync.Mutex
}

// Name implements pipeline.Destination.
func (s *Stream) Name() string {
	if s.Label == "" {
		return "stream"
	}
	return s.Label
}

// Open implements pipeline.Destination. Concurrent drains into one Stream
// are serialised for the lifetime of each sink.
func (s *Stream) Open(context.Context) (io.WriteCloser, error) {
	if s.W == nil {
		return nil, goerrors.New(isa.ErrCodeDestinationCreate, "nil stream")
	}
	s.mu.Lock()
	return &streamSink{s: s}, nil
}

type streamSink struct {
	s      *Stream
	closed bool
}

func (k *streamSink) Write(b []byte) (int, error) {
	n, err := k.s.W.Write(b)
	if err != nil {
		return n, goerrors.Wrap(err, isa.ErrCodeDestinationIO, "write stream").WithContext("stream", k.s.Name())
	}
	return n, nil
}

func (k *streamSink) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	defer k.s.mu.Unlock()
	if !k.s.CloseAfter {
		return nil
	}
	if c, ok := k.s.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
