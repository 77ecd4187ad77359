package sqlxrepos

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
	testutil "github.com/slotwise/slotwise/tests"
)

func TestQuoting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "year table", got: qualified("CSE", "1stYear"), want: `"CSE"."1stYear"`},
		{name: "department starting with a digit", got: quote("2024CSE"), want: `"2024CSE"`},
		{name: "dot in name", got: quote("Sem.1"), want: `"Sem.1"`},
		{name: "embedded quote", got: quote(`we"ird`), want: `"we""ird"`},
		{name: "preference column", got: core.DBOrdering{Field: "1_1", Ascending: true}.String(), want: `"1_1" ASC`},
		{name: "column with a space", got: core.DBOrdering{Field: "Venue No"}.String(), want: `"Venue No" DESC`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestQueries(t *testing.T) {
	prefs := schema.NewTable("FacultyPreferences_FacultyPreferences", "Employee_ID", "1_1", "Venue No")

	assert.Equal(t,
		`CREATE TABLE "2024CSE"."FacultyPreferences_FacultyPreferences" (id serial PRIMARY KEY, "Employee_ID" text, "1_1" text, "Venue No" text)`,
		createTableQuery("2024CSE", prefs))
	assert.Equal(t,
		`INSERT INTO "2024CSE"."FacultyPreferences_FacultyPreferences" ("Employee_ID", "1_1", "Venue No") VALUES ($1,$2,$3)`,
		insertQuery("2024CSE", prefs))
	assert.Equal(t,
		`SELECT "Employee_ID", "1_1", "Venue No" FROM "2024CSE"."FacultyPreferences_FacultyPreferences" ORDER BY id`,
		selectColumnsQuery("2024CSE", prefs))
	assert.Equal(t,
		`ALTER TABLE "CSE"."1stYear" ADD COLUMN IF NOT EXISTS "2_1" text`,
		addColumnQuery("CSE", "1stYear", schema.Column{Name: "2_1", Type: schema.TypeText}))

	q, args := selectPageQuery("CSE", "1stYear",
		[]core.DBOrdering{{Field: "Venue No"}, {Field: "1_1", Ascending: true}},
		core.Page{Limit: 10, Offset: 20})
	assert.Equal(t, `SELECT * FROM "CSE"."1stYear" ORDER BY "Venue No" DESC, "1_1" ASC LIMIT $1 OFFSET $2`, q)
	assert.Equal(t, []interface{}{10, 20}, args)

	q, args = selectPageQuery("CSE", "1stYear", nil, core.Page{})
	assert.Equal(t, `SELECT * FROM "CSE"."1stYear"`, q)
	assert.Empty(t, args)
}

func openStore(t *testing.T, schemaName string) (*schemaStore, context.Context) {
	db := sqlx.NewDb(testutil.OpenDB(t), "postgres")
	store := NewSchemaStore(db)
	ctx := context.Background()

	_ = store.DropSchema(ctx, schemaName)
	require.NoError(t, store.CreateSchema(ctx, schemaName))
	t.Cleanup(func() { _ = store.DropSchema(ctx, schemaName) })
	return store, ctx
}

func TestSchemaStore(t *testing.T) {
	const dept = "2024CSE"
	store, ctx := openStore(t, dept)

	year := schema.NewTable("1stYear", "Subjects", "1_1", "Venue No")
	year.AppendRow(schema.Str("CS101 / Maths"), schema.Str("a"), schema.Str("L2"))
	year.AppendRow(schema.Str("CS102 / Physics"), null.String{}, schema.Str("L1"))
	require.NoError(t, store.AppendTable(ctx, dept, year))

	names, err := store.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, dept)

	tables, err := store.ListTables(ctx, dept)
	require.NoError(t, err)
	assert.Equal(t, []string{"1stYear"}, tables)

	cols, err := store.DescribeTable(ctx, dept, "1stYear")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, schema.Column{Name: "id", Type: "integer", Nullable: false, Key: "PRI"}, cols[0])
	assert.Equal(t, schema.Column{Name: "Venue No", Type: "text", Nullable: true}, cols[3])

	rows, err := store.QueryRows(ctx, dept, "1stYear", []core.DBOrdering{{Field: "Venue No", Ascending: true}}, core.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CS102 / Physics", rows[0]["Subjects"])
	assert.Nil(t, rows[0]["1_1"])

	// appending adds the new column and keeps the rows
	more := schema.NewTable("1stYear", "Subjects", "2_1")
	more.AppendRow(schema.Str("CS103 / Lab"), schema.Str("b"))
	require.NoError(t, store.AppendTable(ctx, dept, more))

	n, err := store.CountRows(ctx, dept, "1stYear")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	read, err := store.ReadTable(ctx, dept, "1stYear")
	require.NoError(t, err)
	assert.Equal(t, []string{"Subjects", "1_1", "Venue No", "2_1"}, read.ColumnNames())
	require.Len(t, read.Rows, 3)
	assert.Equal(t, "CS103 / Lab", read.Get(2, "Subjects").String)
	assert.Equal(t, "b", read.Get(2, "2_1").String)
	assert.False(t, read.Get(2, "Venue No").Valid)

	// replacing drops the old rows
	require.NoError(t, store.ReplaceTable(ctx, dept, year))
	n, err = store.CountRows(ctx, dept, "1stYear")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DropTable(ctx, dept, "1stYear"))
	_, err = store.CountRows(ctx, dept, "1stYear")
	assert.Equal(t, schema.ErrTableNotFound, err)

	require.NoError(t, store.DropSchema(ctx, dept))
	_, err = store.ListTables(ctx, dept)
	assert.Equal(t, schema.ErrSchemaNotFound, err)
	assert.Equal(t, schema.ErrSchemaNotFound, store.DropSchema(ctx, dept))
	assert.Equal(t, schema.ErrSchemaNotFound, store.AppendTable(ctx, dept, year))
}
