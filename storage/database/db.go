package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/quizhub/core"
	appfs "github.com/trezcool/quizhub/fs"
)

const migrationsDir = "migrations"

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sql.Open(conf.Database.Engine, u.String())
}

// Open connects to the app database and waits for it to answer.
func Open(conf *core.Config) (*sql.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query, name string) (bool, error) {
	var ok bool
	if err := db.QueryRow(query, name).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}
	ok, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if ok {
		return nil
	}
	q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s",
		pq.QuoteIdentifier(conf.Database.User), pq.QuoteLiteral(conf.Database.Password))
	if _, err = db.Exec(q); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	ok, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking database")
	}
	if ok {
		return nil
	}
	if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// CreateIfNotExist creates the app role as admin, then the app database as the app role.
func CreateIfNotExist(conf *core.Config) error {
	admin, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database as admin")
	}
	defer func() { _ = admin.Close() }()
	if err = ping(admin); err != nil {
		return err
	}
	if err = createAppUser(admin, conf); err != nil {
		return err
	}

	app, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = app.Close() }()
	return createDB(app, conf)
}

func init() {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		panic(err)
	}
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	return RunMigrations(context.Background(), db, "up")
}

// RunMigrations runs a goose command (up, down, status, redo, version...) over the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations: %s", command)
	}
	return nil
}
