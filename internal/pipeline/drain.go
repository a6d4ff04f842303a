package pipeline

import (
	"context"
	"errors"
	"io"
)

// Destination is where a drained file ends up.
type Destination interface {
	// Name identifies the destination in logs and reports.
	Name() string
	// Open prepares the sink. File sinks take their lock here.
	Open(ctx context.Context) (io.WriteCloser, error)
}

// Preflighter is implemented by destinations that can detect, before any
// worker starts, that they are unusable (for example a file that exists
// and must not be overwritten).
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// Aborter is implemented by sinks that can discard partial output. Drain
// calls Abort instead of Close when the copy failed.
type Aborter interface {
	Abort(err error) error
}

// Drain copies src to dst in chunkSize reads until EOF. It counts latch
// down exactly once and always releases the sink, whatever happens.
func Drain(ctx context.Context, src io.Reader, dst Destination, chunkSize int, latch *Latch) (written int64, err error) {
	defer latch.CountDown()
	if chunkSize < 1 {
		chunkSize = 32 * 1024
	}
	sink, err := dst.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if a, ok := sink.(Aborter); ok && err != nil {
			if aerr := a.Abort(err); aerr != nil {
				err = errors.Join(err, aerr)
			}
			return
		}
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := sink.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if m != n {
				return written, io.ErrShortWrite
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
