package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings whose field is in `columns` ({json field: column}).
// Unknown fields are dropped; `fallback` is used when nothing is left.
func OrderByClause(orderings []DBOrdering, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}
