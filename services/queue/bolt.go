package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"go.etcd.io/bbolt"

	"github.com/trezcool/quizhub/core/job"
)

var (
	jobsBucket    = []byte("Jobs")    // {job id: job json}
	pendingBucket = []byte("Pending") // {created at + job id: job id}, oldest first
)

// BoltStore is a job.Store kept in a single bbolt file, for single process setups.
type BoltStore struct {
	db *bbolt.DB
}

var _ job.Store = (*BoltStore)(nil)

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating queue dir")
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt db")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{jobsBucket, pendingBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func pendingKey(j job.Job) []byte {
	key := make([]byte, 8, 8+len(j.ID))
	binary.BigEndian.PutUint64(key, uint64(j.CreatedAt.UnixNano()))
	return append(key, j.ID[:]...)
}

func putJob(tx *bbolt.Tx, j job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return tx.Bucket(jobsBucket).Put([]byte(j.ID.String()), data)
}

func getJob(tx *bbolt.Tx, id string) (job.Job, error) {
	data := tx.Bucket(jobsBucket).Get([]byte(id))
	if data == nil {
		return job.Job{}, job.ErrNotFound
	}
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return job.Job{}, errors.Wrap(err, "decoding job")
	}
	return j, nil
}

func (s *BoltStore) Enqueue(_ context.Context, j job.Job) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putJob(tx, j); err != nil {
			return err
		}
		return tx.Bucket(pendingBucket).Put(pendingKey(j), []byte(j.ID.String()))
	})
}

func (s *BoltStore) Claim(_ context.Context) (job.Job, error) {
	var claimed job.Job
	err := s.db.Update(func(tx *bbolt.Tx) error {
		pending := tx.Bucket(pendingBucket)
		k, v := pending.Cursor().First()
		if k == nil {
			return job.ErrNoJob
		}
		if err := pending.Delete(k); err != nil {
			return err
		}
		j, err := getJob(tx, string(v))
		if err != nil {
			return err
		}
		j.Status = job.StatusRunning
		j.StartedAt = null.TimeFrom(job.NowFunc().UTC())
		claimed = j
		return putJob(tx, j)
	})
	return claimed, err
}

func (s *BoltStore) Finish(_ context.Context, id uuid.UUID, result string, runErr error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		j, err := getJob(tx, id.String())
		if err != nil {
			return err
		}
		j.Result = result
		j.Status = job.StatusDone
		if runErr != nil {
			j.Status = job.StatusFailed
			j.Error = runErr.Error()
		}
		j.FinishedAt = null.TimeFrom(job.NowFunc().UTC())
		return putJob(tx, j)
	})
}

func (s *BoltStore) Get(_ context.Context, id uuid.UUID) (job.Job, error) {
	var j job.Job
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		j, err = getJob(tx, id.String())
		return err
	})
	return j, err
}
