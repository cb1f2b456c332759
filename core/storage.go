package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var ErrFileNotFound = errors.New("file not found")

// FileStore keeps uploaded files under flat names.
// Implementations reduce every name to its base name before touching storage.
type FileStore interface {
	// Save stores r under `name` and returns the stored name and the number of bytes written.
	Save(ctx context.Context, name string, r io.Reader) (stored string, size int64, err error)
	// Open returns ErrFileNotFound for unknown names.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
