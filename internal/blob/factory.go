package blob

import (
	"context"
	"fmt"

	"isatab/internal/infra/blob/fs"
	memorystore "isatab/internal/infra/blob/memory"
	infraS3 "isatab/internal/infra/blob/s3"
)

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// Settings selects and configures a backend.
type Settings struct {
	Driver Driver   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Open returns the store described by s. An empty driver means fs.
func Open(ctx context.Context, s Settings) (Store, error) {
	switch s.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(s.FSRoot)
	case DriverS3:
		return NewS3(ctx, s.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", s.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns an S3 or S3-compatible store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 store backed by an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
