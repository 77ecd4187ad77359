// Package sqlxrepos stores department datasets and timetables in postgres schemas.
package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

var quote = core.QuoteIdent

func qualified(schemaName, table string) string {
	return quote(schemaName) + "." + quote(table)
}

func selectPageQuery(schemaName, table string, ordering []core.DBOrdering, page core.Page) (string, []interface{}) {
	var (
		q    strings.Builder
		args []interface{}
	)
	q.WriteString("SELECT * FROM " + qualified(schemaName, table))
	if len(ordering) > 0 {
		terms := make([]string, len(ordering))
		for i, ord := range ordering {
			terms[i] = ord.String()
		}
		q.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if page.Limit > 0 {
		args = append(args, page.Limit, page.Offset)
		q.WriteString(" LIMIT $1 OFFSET $2")
	}
	return q.String(), args
}

func selectColumnsQuery(schemaName string, t *schema.Table) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id",
		strings.Join(core.QuoteIdents(t.ColumnNames()), ", "), qualified(schemaName, t.Name))
}

func createTableQuery(schemaName string, t *schema.Table) string {
	defs := []string{"id serial PRIMARY KEY"}
	for _, col := range t.Columns {
		defs = append(defs, quote(col.Name)+" "+col.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualified(schemaName, t.Name), strings.Join(defs, ", "))
}

func insertQuery(schemaName string, t *schema.Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified(schemaName, t.Name),
		strings.Join(core.QuoteIdents(t.ColumnNames()), ", "),
		strmangle.Placeholders(true, len(t.Columns), 1, 1),
	)
}

func addColumnQuery(schemaName, table string, col schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", qualified(schemaName, table), quote(col.Name), col.Type)
}

type schemaStore struct {
	db *sqlx.DB
}

var _ schema.Store = (*schemaStore)(nil)

func NewSchemaStore(db *sqlx.DB) *schemaStore {
	return &schemaStore{db: db}
}

func schemaExists(ctx context.Context, q sqlx.QueryerContext, name string) (bool, error) {
	var found bool
	err := sqlx.GetContext(ctx, q, &found,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", name)
	return found, errors.Wrap(err, "checking schema")
}

func tableExists(ctx context.Context, q sqlx.QueryerContext, schemaName, table string) (bool, error) {
	var found bool
	err := sqlx.GetContext(ctx, q, &found,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
		schemaName, table)
	return found, errors.Wrap(err, "checking table")
}

func (s *schemaStore) mustExist(ctx context.Context, schemaName, table string) error {
	found, err := tableExists(ctx, s.db, schemaName, table)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	if found, err = schemaExists(ctx, s.db, schemaName); err != nil {
		return err
	} else if !found {
		return schema.ErrSchemaNotFound
	}
	return schema.ErrTableNotFound
}

func (s *schemaStore) ListSchemas(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, "SELECT schema_name FROM information_schema.schemata ORDER BY schema_name")
	return names, errors.Wrap(err, "listing schemas")
}

func (s *schemaStore) CreateSchema(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quote(name))
	return errors.Wrapf(err, "creating schema %s", name)
}

func (s *schemaStore) DropSchema(ctx context.Context, name string) error {
	found, err := schemaExists(ctx, s.db, name)
	if err != nil {
		return err
	}
	if !found {
		return schema.ErrSchemaNotFound
	}
	_, err = s.db.ExecContext(ctx, "DROP SCHEMA "+quote(name)+" CASCADE")
	return errors.Wrapf(err, "dropping schema %s", name)
}

func (s *schemaStore) ListTables(ctx context.Context, name string) ([]string, error) {
	found, err := schemaExists(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, schema.ErrSchemaNotFound
	}
	var tables []string
	err = s.db.SelectContext(ctx, &tables,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name", name)
	return tables, errors.Wrapf(err, "listing tables of %s", name)
}

const describeQuery = `
SELECT a.attname AS name,
       format_type(a.atttypid, a.atttypmod) AS type,
       NOT a.attnotnull AS nullable,
       CASE WHEN EXISTS (
           SELECT 1 FROM pg_index i
           WHERE i.indrelid = a.attrelid AND i.indisprimary AND a.attnum = ANY(i.indkey)
       ) THEN 'PRI' ELSE '' END AS key
FROM pg_attribute a
WHERE a.attrelid = $1::regclass AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

func (s *schemaStore) DescribeTable(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	if err := s.mustExist(ctx, schemaName, table); err != nil {
		return nil, err
	}
	var cols []schema.Column
	err := s.db.SelectContext(ctx, &cols, describeQuery, qualified(schemaName, table))
	return cols, errors.Wrapf(err, "describing %s", table)
}

func (s *schemaStore) CountRows(ctx context.Context, schemaName, table string) (int, error) {
	if err := s.mustExist(ctx, schemaName, table); err != nil {
		return 0, err
	}
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+qualified(schemaName, table))
	return n, errors.Wrapf(err, "counting %s", table)
}

func (s *schemaStore) QueryRows(ctx context.Context, schemaName, table string, ordering []core.DBOrdering, page core.Page) ([]schema.Row, error) {
	if err := s.mustExist(ctx, schemaName, table); err != nil {
		return nil, err
	}

	q, args := selectPageQuery(schemaName, table, ordering, page)
	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	defer func() { _ = rows.Close() }()

	var result []schema.Row
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	return result, errors.Wrapf(rows.Err(), "reading %s", table)
}

func (s *schemaStore) ReadTable(ctx context.Context, schemaName, table string) (*schema.Table, error) {
	cols, err := s.DescribeTable(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	t := &schema.Table{Name: table}
	for _, col := range cols {
		if col.Name == "id" {
			continue
		}
		t.Columns = append(t.Columns, col)
	}
	if len(t.Columns) == 0 {
		return t, nil
	}

	rows, err := s.db.QueryContext(ctx, selectColumnsQuery(schemaName, t))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", table)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		row := make([]null.String, len(t.Columns))
		dest := make([]interface{}, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, errors.Wrapf(rows.Err(), "reading %s", table)
}

func createTable(ctx context.Context, tx *sqlx.Tx, schemaName string, t *schema.Table) error {
	_, err := tx.ExecContext(ctx, createTableQuery(schemaName, t))
	return errors.Wrapf(err, "creating %s", t.Name)
}

func insertRows(ctx context.Context, tx *sqlx.Tx, schemaName string, t *schema.Table) error {
	if len(t.Rows) == 0 || len(t.Columns) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, insertQuery(schemaName, t))
	if err != nil {
		return errors.Wrapf(err, "preparing insert into %s", t.Name)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range t.Rows {
		args := make([]interface{}, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "inserting into %s", t.Name)
		}
	}
	return nil
}

func (s *schemaStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s *schemaStore) ReplaceTable(ctx context.Context, schemaName string, t *schema.Table) error {
	if found, err := schemaExists(ctx, s.db, schemaName); err != nil {
		return err
	} else if !found {
		return schema.ErrSchemaNotFound
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified(schemaName, t.Name)); err != nil {
			return errors.Wrapf(err, "dropping %s", t.Name)
		}
		if err := createTable(ctx, tx, schemaName, t); err != nil {
			return err
		}
		return insertRows(ctx, tx, schemaName, t)
	})
}

func (s *schemaStore) AppendTable(ctx context.Context, schemaName string, t *schema.Table) error {
	if found, err := schemaExists(ctx, s.db, schemaName); err != nil {
		return err
	} else if !found {
		return schema.ErrSchemaNotFound
	}
	found, err := tableExists(ctx, s.db, schemaName, t.Name)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if !found {
			if err := createTable(ctx, tx, schemaName, t); err != nil {
				return err
			}
			return insertRows(ctx, tx, schemaName, t)
		}
		for _, col := range t.Columns {
			if _, err := tx.ExecContext(ctx, addColumnQuery(schemaName, t.Name, col)); err != nil {
				return errors.Wrapf(err, "adding column %s to %s", col.Name, t.Name)
			}
		}
		return insertRows(ctx, tx, schemaName, t)
	})
}

func (s *schemaStore) DropTable(ctx context.Context, schemaName, table string) error {
	if err := s.mustExist(ctx, schemaName, table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DROP TABLE "+qualified(schemaName, table))
	return errors.Wrapf(err, "dropping %s", table)
}
