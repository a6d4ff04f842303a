// Package destination provides the sinks drained files are written to.
package destination

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	goerrors "github.com/agilira/go-errors"

	"isatab/internal/pipeline"
	"isatab/pkg/isa"
)

// Mode selects how an existing file is treated.
type Mode int

const (
	// ModeCreate refuses to touch an existing file.
	ModeCreate Mode = iota
	// ModeTruncate replaces an existing file.
	ModeTruncate
	// ModeAppend adds to an existing file.
	ModeAppend
)

// DefaultLockTimeout bounds how long Open retries a held lock.
const DefaultLockTimeout = 10 * time.Second

// File writes to a local path under an exclusive advisory lock held for
// the lifetime of the sink.
type File struct {
	Path        string
	Mode        Mode
	LockTimeout time.Duration
}

var (
	_ pipeline.Destination = (*File)(nil)
	_ pipeline.Preflighter = (*File)(nil)
)

// Name implements pipeline.Destination.
func (f *File) Name() string { return f.Path }

// Preflight fails when the file exists and Mode is ModeCreate.
func (f *File) Preflight(context.Context) error {
	if f.Mode != ModeCreate {
		return nil
	}
	if _, err := os.Stat(f.Path); err == nil {
		return goerrors.New(isa.ErrCodeDestinationExists, "output file already exists").WithContext("path", f.Path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return goerrors.Wrap(err, isa.ErrCodeDestinationIO, "stat output file").WithContext("path", f.Path)
	}
	return nil
}

// Open creates the parent directory, opens the file and takes the lock.
func (f *File) Open(ctx context.Context) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return nil, goerrors.Wrap(err, isa.ErrCodeDestinationCreate, "create output directory").WithContext("path", f.Path)
	}
	flags := os.O_CREATE | os.O_WRONLY
	switch f.Mode {
	case ModeCreate:
		flags |= os.O_EXCL
	case ModeTruncate:
		// Truncate only after the lock is held.
	case ModeAppend:
		flags |= os.O_APPEND
	}
	file, err := os.OpenFile(f.Path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, goerrors.Wrap(err, isa.ErrCodeDestinationExists, "output file already exists").WithContext("path", f.Path)
		}
		return nil, goerrors.Wrap(err, isa.ErrCodeDestinationCreate, "open output file").WithContext("path", f.Path)
	}
	timeout := f.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := acquire(ctx, file, timeout); err != nil {
		_ = file.Close()
		return nil, goerrors.Wrap(err, isa.ErrCodeDestinationLocked, "output file cannot be locked").WithContext("path", f.Path)
	}
	if f.Mode == ModeTruncate {
		if err := file.Truncate(0); err != nil {
			_ = release(file)
			_ = file.Close()
			return nil, goerrors.Wrap(err, isa.ErrCodeDestinationIO, "truncate output file").WithContext("path", f.Path)
		}
	}
	return &fileSink{file: file, path: f.Path}, nil
}

type fileSink struct {
	file *os.File
	path string
}

func (s *fileSink) Write(b []byte) (int, error) {
	n, err := s.file.Write(b)
	if err != nil {
		return n, goerrors.Wrap(err, isa.ErrCodeDestinationIO, "write output file").WithContext("path", s.path)
	}
	return n, nil
}

// Close releases the lock before closing; both always run.
func (s *fileSink) Close() error {
	lerr := release(s.file)
	cerr := s.file.Close()
	if err := errors.Join(lerr, cerr); err != nil {
		return goerrors.Wrap(err, isa.ErrCodeDestinationIO, "close output file").WithContext("path", s.path)
	}
	return nil
}

// acquire retries a non-blocking lock with doubling pauses until timeout.
func acquire(ctx context.Context, file *os.File, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	pause := 5 * time.Millisecond
	for {
		err := tryLock(file)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errLockHeld) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		if pause < 500*time.Millisecond {
			pause *= 2
		}
	}
}

var errLockHeld = errors.New("lock held by another process")
