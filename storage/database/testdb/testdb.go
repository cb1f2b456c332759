//go:build integration
// +build integration

// Package testdb starts a throwaway postgres with every migration applied.
package testdb

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trezcool/quizhub/storage/database"
)

type DBHandle struct {
	DB     *sql.DB
	cancel func()
	stop   func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("quizhub"),
		postgres.WithUsername("quizhub"),
		postgres.WithPassword("quizhub"),
	)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "starting postgres container")
	}
	fail := func(err error) (*DBHandle, error) {
		_ = pg.Terminate(context.Background())
		cancel()
		return nil, err
	}

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fail(err)
	}
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return fail(err)
	}
	if err = waitReady(ctx, db); err != nil {
		return fail(err)
	}
	if err = database.Migrate(db); err != nil {
		return fail(errors.Wrap(err, "migrating"))
	}

	return &DBHandle{DB: db, cancel: cancel, stop: pg.Terminate}, nil
}

func waitReady(ctx context.Context, db *sql.DB) error {
	dead := time.Now().Add(20 * time.Second)
	for time.Now().Before(dead) {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("db not ready")
}
