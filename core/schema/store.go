package schema

import (
	"context"

	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
)

var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrTableNotFound  = errors.New("table not found")
)

// Row is a database row keyed by column name, the `id` column included.
type Row = map[string]interface{}

// Store persists departments as database schemas holding free-form tables.
type Store interface {
	ListSchemas(ctx context.Context) ([]string, error)
	CreateSchema(ctx context.Context, schema string) error
	DropSchema(ctx context.Context, schema string) error

	ListTables(ctx context.Context, schema string) ([]string, error)
	// DescribeTable lists every column, the `id` key first.
	DescribeTable(ctx context.Context, schema, table string) ([]Column, error)
	CountRows(ctx context.Context, schema, table string) (int, error)
	// QueryRows returns a page of rows; a zero page.Limit returns every row.
	QueryRows(ctx context.Context, schema, table string, ordering []core.DBOrdering, page core.Page) ([]Row, error)

	ReadTable(ctx context.Context, schema, table string) (*Table, error)
	// ReplaceTable drops and recreates t.Name in the schema with t's rows.
	ReplaceTable(ctx context.Context, schema string, t *Table) error
	// AppendTable inserts t's rows, creating the table or its missing columns first.
	AppendTable(ctx context.Context, schema string, t *Table) error
	DropTable(ctx context.Context, schema, table string) error
}
