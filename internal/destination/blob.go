package destination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goerrors "github.com/agilira/go-errors"

	"isatab/internal/blob"
	"isatab/pkg/isa"
)

// Blob writes to an object in a blob store. Drained bytes are spooled to a
// temporary file and uploaded on Close, so the object only appears once
// the drain completes and an aborted drain leaves nothing behind.
type Blob struct {
	Store       blob.Store
	Key         string
	ContentType string
	Metadata    map[string]string
	// SpoolDir holds the temporary file; empty uses os.TempDir.
	SpoolDir string
}

// Name implements pipeline.Destination.
func (b *Blob) Name() string {
	return fmt.Sprintf("%s://%s", b.Store.Driver(), b.Key)
}

// Preflight fails when the object already exists or the store cannot tell.
func (b *Blob) Preflight(ctx context.Context) error {
	_, err := b.Store.Head(ctx, b.Key)
	switch {
	case err == nil:
		return goerrors.New(isa.ErrCodeDestinationExists, "object already exists").WithContext("key", b.Key)
	case errors.Is(err, blob.ErrNotFound):
		return nil
	default:
		return goerrors.Wrap(err, isa.ErrCodeDestinationIO, "check object").WithContext("key", b.Key)
	}
}

// Open creates the spool file.
func (b *Blob) Open(ctx context.Context) (io.WriteCloser, error) {
	spool, err := os.CreateTemp(b.SpoolDir, "isatab-spool-*")
	if err != nil {
		return nil, goerrors.Wrap(err, isa.ErrCodeDestinationCreate, "create spool file").WithContext("key", b.Key)
	}
	contentType := b.ContentType
	if contentType == "" {
		contentType = "text/tab-separated-values"
	}
	return &blobSink{ctx: ctx, dst: b, spool: spool, contentType: contentType}, nil
}

type blobSink struct {
	ctx         context.Context
	dst         *Blob
	spool       *os.File
	contentType string
}

func (s *blobSink) Write(p []byte) (int, error) {
	n, err := s.spool.Write(p)
	if err != nil {
		return n, goerrors.Wrap(err, isa.ErrCodeDestinationIO, "write spool file").WithContext("key", s.dst.Key)
	}
	return n, nil
}

// Close uploads the spooled bytes.
func (s *blobSink) Close() error {
	defer s.discard()
	if _, err := s.spool.Seek(0, io.SeekStart); err != nil {
		return goerrors.Wrap(err, isa.ErrCodeDestinationIO, "rewind spool file").WithContext("key", s.dst.Key)
	}
	opts := blob.PutOptions{ContentType: s.contentType, Metadata: s.dst.Metadata}
	if _, err := s.dst.Store.Put(s.ctx, s.dst.Key, s.spool, opts); err != nil {
		return goerrors.Wrap(err, isa.ErrCodeDestinationIO, "store object").WithContext("key", s.dst.Key)
	}
	return nil
}

// Abort drops the spooled bytes without uploading.
func (s *blobSink) Abort(error) error {
	s.discard()
	return nil
}

func (s *blobSink) discard() {
	_ = s.spool.Close()
	_ = os.Remove(s.spool.Name())
}
