package core

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
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
)

// QuoteIdent always double-quotes an identifier. Department, table and column names come
// from uploads and may start with a digit or hold spaces and dots.
func QuoteIdent(ident string) string {
	return pq.QuoteIdentifier(ident)
}

// QuoteIdents quotes each identifier.
func QuoteIdents(idents []string) []string {
	out := make([]string, len(idents))
	for i, ident := range idents {
		out[i] = QuoteIdent(ident)
	}
	return out
}

// DBOrdering is an ORDER BY term. Field is quoted, so it keeps its case.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return QuoteIdent(ord.Field) + " " + direction
}

// Page is a LIMIT/OFFSET window over a table.
type Page struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// HasMore reports whether rows remain after a page that returned `n` rows out of `total`.
func (p Page) HasMore(n, total int) bool {
	return p.Offset+n < total
}
