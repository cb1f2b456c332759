package filestore

import (
	"context"
	"io"
	"path/filepath"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
)

// b2Store keeps files as objects of a Backblaze B2 bucket, keyed by base name.
type b2Store struct {
	bucket *b2.Bucket
}

var _ core.FileStore = (*b2Store)(nil)

func NewB2Store(ctx context.Context, accountID, appKey, bucketName string) (core.FileStore, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrapf(err, "getting bucket %s", bucketName)
	}
	return &b2Store{bucket: bucket}, nil
}

func (s *b2Store) Save(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	name, err := s.freeName(ctx, filepath.Base(name))
	if err != nil {
		return "", 0, err
	}
	w := s.bucket.Object(name).NewWriter(ctx)
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", 0, errors.Wrap(err, "writing object")
	}
	if err := w.Close(); err != nil {
		return "", 0, errors.Wrap(err, "closing object writer")
	}
	return name, size, nil
}

// freeName finds a name no object uses yet; B2 would otherwise hide the older file behind a new version.
func (s *b2Store) freeName(ctx context.Context, name string) (string, error) {
	for i := 0; i <= core.MaxNameSuffix; i++ {
		candidate := core.SuffixedName(name, i)
		_, err := s.bucket.Object(candidate).Attrs(ctx)
		if b2.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "reading object attrs")
		}
	}
	return "", errors.Errorf("no free name for %s", name)
}

func (s *b2Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj := s.bucket.Object(filepath.Base(name))
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "reading object attrs")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Store) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Object(filepath.Base(name)).Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

// New picks the backend configured in conf.Storage.
func New(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	if conf.Storage.Backend == "b2" {
		return NewB2Store(ctx, conf.Storage.B2AccountID, conf.Storage.B2AppKey, conf.Storage.B2BucketName)
	}
	return NewLocalStore(conf.Storage.UploadDir)
}
