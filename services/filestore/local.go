package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
)

// localStore keeps files flat in one directory.
type localStore struct {
	dir string
}

var _ core.FileStore = (*localStore)(nil)

func NewLocalStore(dir string) (core.FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *localStore) Save(_ context.Context, name string, r io.Reader) (string, int64, error) {
	f, name, err := core.CreateUnique(s.dir, filepath.Base(name))
	if err != nil {
		return "", 0, errors.Wrap(err, "creating file")
	}
	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		_ = os.Remove(s.path(name))
		return "", 0, errors.Wrap(err, "writing file")
	}
	if err := f.Close(); err != nil {
		return "", 0, errors.Wrap(err, "closing file")
	}
	return name, size, nil
}

func (s *localStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, core.ErrFileNotFound
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "removing file")
	}
	return nil
}
