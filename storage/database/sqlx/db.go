// Package sqlxrepos implements the repositories on postgres through sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// NewDB wraps a postgres connection opened by database.Open.
func NewDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// notFound maps sql.ErrNoRows to the entity's own error.
func notFound(err, entityErr error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return entityErr
	}
	return err
}

// insertReturningID runs a named INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (int, error) {
	rows, err := db.NamedQueryContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var id int
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return 0, err
		}
		return 0, sql.ErrNoRows
	}
	if err = rows.Scan(&id); err != nil {
		return 0, err
	}
	return id, rows.Err()
}

// checkAffected returns entityErr when an UPDATE or DELETE touched no row.
func checkAffected(res sql.Result, entityErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entityErr
	}
	return nil
}

// where collects AND-ed conditions written with `?` placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// anyOf matches col against ids; a non-nil empty slice matches nothing.
func (w *where) anyOf(col string, ids []int) {
	if ids == nil {
		return
	}
	w.add(col+" = ANY(?)", pq.Array(ids))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likeArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
