package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
)

func seed(t *testing.T, store schema.Store, dept string, tables ...*schema.Table) {
	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx, dept))
	for _, tbl := range tables {
		require.NoError(t, store.ReplaceTable(ctx, dept, tbl))
	}
}

func formatted(rows ...[2]string) *schema.Table {
	tbl := schema.NewTable("SortedTableFormatted", "Name", "SUB_1")
	for _, r := range rows {
		tbl.AppendRow(schema.Str(r[0]), schema.Str(r[1]))
	}
	return tbl
}

func TestIsProtected(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"public", true},
		{"information_schema", true},
		{"pg_toast_temp_1", true},
		{"login_details", true},
		{"CSE", false},
		{"timetable_20240101_000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.IsProtected(tt.name))
		})
	}
}

func TestService_ListDepartments(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := schema.NewService(store)
	for _, name := range []string{"ECE", "public", "CSE", "timetable_20240101_000000", "pg_catalog"} {
		seed(t, store, name)
	}

	all, err := svc.ListSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE", "ECE", "timetable_20240101_000000"}, all)

	depts, err := svc.ListDepartments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CSE", "ECE"}, depts)
}

func TestService_DeleteDepartment(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := schema.NewService(store)
	seed(t, store, "CSE")
	seed(t, store, "timetable_20240101_000000")
	ctx := context.Background()

	tests := []struct {
		name string
		kind core.ErrorKind
		msg  string
	}{
		{"  ", core.KindBadRequest, "Department name is required"},
		{"pg_catalog", core.KindForbidden, "Cannot delete protected schema: pg_catalog"},
		{"MECH", core.KindNotFound, "Department 'MECH' not found"},
		{"timetable_20240101_000000", core.KindBadRequest, "Use the timetable deletion endpoint for timetable schemas"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.DeleteDepartment(ctx, tt.name)
			appErr, ok := core.AsAppError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}

	require.NoError(t, svc.DeleteDepartment(ctx, "CSE"))
	names, err := store.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"timetable_20240101_000000"}, names)
}

func TestService_SortedTable(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := schema.NewService(store)
	sorted := schema.NewTable("sorted_table", "Name")
	for _, n := range []string{"b", "c", "a"} {
		sorted.AppendRow(schema.Str(n))
	}
	seed(t, store, "CSE", sorted)
	ctx := context.Background()

	// unknown sort columns fall back to the first column: id
	page, err := svc.SortedTable(ctx, "cse", schema.SortedTableQuery{SortBy: "nope", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "CSE", page.Database)
	assert.Equal(t, "sorted_table", page.TableName)
	assert.Equal(t, schema.Pagination{Total: 3, Limit: 100}, page.Pagination)
	require.Len(t, page.Data, 3)
	assert.Equal(t, 3, page.Data[0]["id"])

	page, err = svc.SortedTable(ctx, "CSE", schema.SortedTableQuery{Page: core.Page{Limit: 1, Offset: 1}, SortBy: "NAME"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "b", page.Data[0]["Name"])
	assert.True(t, page.Pagination.HasMore)

	_, err = svc.SortedTable(ctx, "CSE", schema.SortedTableQuery{Page: core.Page{Offset: -1}})
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "offset must be greater than or equal to 0", appErr.Message)

	seed(t, store, "ECE")
	_, err = svc.SortedTable(ctx, "ECE", schema.SortedTableQuery{})
	appErr, ok = core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindNotFound, appErr.Kind)
	assert.Equal(t, "No sorted table found in schema 'ECE'. Available tables: []", appErr.Message)
}

func TestService_ExportCSV(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := schema.NewService(store)
	seed(t, store, "CSE", formatted([2]string{"Alice", "CS101"}))
	seed(t, store, "ECE", formatted([2]string{"Bob", "EC101"}, [2]string{"Eve", "EC102"}))
	seed(t, store, "MECH")

	exp, err := svc.ExportCSV(context.Background(), schema.ExportFormatted, []string{"CSE", " ", "ECE", "MECH"})
	require.NoError(t, err)
	assert.Equal(t, "SortedTableFormatted_CSE_ECE_MECH.csv", exp.Filename)
	assert.Equal(t, []string{"MECH"}, exp.FailedDepartments)
	assert.Equal(t, "id,Name,SUB_1\n1,Alice,CS101\n1,Bob,EC101\n2,Eve,EC102\n", string(exp.Data))

	_, err = svc.ExportCSV(context.Background(), schema.ExportFormatted, []string{"MECH"})
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "No SortedTableFormatted data found for the selected departments", appErr.Message)

	_, err = svc.ExportCSV(context.Background(), schema.ExportUniqueSubjects, nil)
	appErr, ok = core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Select at least one department", appErr.Message)
}
