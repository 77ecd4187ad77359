package allocation_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/core/allocation"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
	testutil "github.com/slotwise/slotwise/tests"
)

func seedDepartment(t *testing.T, store schema.Store, dept string, subjects ...string) {
	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx, dept))
	all := schema.NewTable(ingest.AllSubjectsTable, "sections", "subjects")
	for _, s := range subjects {
		all.AppendRow(schema.Str("CSE-A (1stYear)"), schema.Str(s))
	}
	require.NoError(t, store.ReplaceTable(ctx, dept, all))
}

func facultyFiles(t *testing.T) (ingest.File, ingest.File) {
	list := testutil.XLSX(t, [][]interface{}{
		{"Name", "Employee ID"},
		{"Alice", "E1"},
		{"Bob", "E2"},
	})
	prefs := testutil.CSV(t, [][]string{
		{"Employee ID", "Designation", "1_1", "2_1"},
		{"E1", "Professor", "CS101 / Maths", "nan"},
		{"E2", "Assistant Professor", "CS102 / Physics", "CS103 / Lab"},
	})
	return ingest.File{Name: "faculty.xlsx", Data: bytes.NewReader(list)},
		ingest.File{Name: "prefs.csv", Data: bytes.NewReader(prefs)}
}

func TestService_ProcessFacultyFiles(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := allocation.NewService(store, testutil.NewLogger(), 42)
	ctx := context.Background()

	seedDepartment(t, store, "CSE",
		"CS101 / Maths (1stYear) (CSE-A)",
		"CS101 / Maths (1stYear) (CSE-B)",
		"CS102 / Physics (1stYear) (CSE-A)",
		"CS102 / Physics (1stYear) (CSE-B)",
		"CS103 / Lab (1stYear) (CSE-C)",
	)
	list, prefs := facultyFiles(t)

	details, err := svc.ProcessFacultyFiles(ctx, "CSE", list, prefs)
	require.NoError(t, err)
	assert.Contains(t, details.Stdout, "Number of professors found: 1")
	assert.Contains(t, details.Stdout, "Modified x value after subtracting professor count: 0")
	assert.Contains(t, details.Stdout, "All operations completed successfully!")

	tables, err := store.ListTables(ctx, "CSE")
	require.NoError(t, err)
	for _, name := range []string{allocation.FacultyTable, allocation.PreferencesTable, allocation.PoolTable, allocation.FormattedTable} {
		assert.Contains(t, tables, name)
	}

	sorted, err := store.ReadTable(ctx, "CSE", allocation.FacultyTable)
	require.NoError(t, err)
	require.Len(t, sorted.Rows, 2)
	assert.Equal(t, "CS101 / Maths (1stYear) (CSE-A)", sorted.Get(0, "SUB_1").String)
	assert.Equal(t, "CS101 / Maths (1stYear) (CSE-B)", sorted.Get(0, "SUB_2").String)
	// the professor is skipped by the SUB_3 pass
	assert.False(t, sorted.Get(0, "SUB_3").Valid)
	assert.Equal(t, "CS102 / Physics (1stYear) (CSE-A)", sorted.Get(1, "SUB_1").String)
	assert.Equal(t, "CS102 / Physics (1stYear) (CSE-B)", sorted.Get(1, "SUB_2").String)
	assert.Equal(t, "CS103 / Lab (1stYear) (CSE-C)", sorted.Get(1, "SUB_3").String)
	assert.Equal(t, "2.1", sorted.Get(1, "SUB_3_PREF").String)

	pool, err := store.ReadTable(ctx, "CSE", allocation.PoolTable)
	require.NoError(t, err)
	assert.Empty(t, pool.Rows)

	formatted, err := store.ReadTable(ctx, "CSE", allocation.FormattedTable)
	require.NoError(t, err)
	require.Len(t, formatted.Rows, 2)
	assert.Equal(t, "CSE-C", formatted.Get(1, "SUB_3_Class").String)
	assert.Equal(t, "1", formatted.Get(1, "SUB_3_Year").String)
}

func TestService_ProcessFacultyFiles_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown schema", func(t *testing.T) {
		svc := allocation.NewService(inmemdb.NewSchemaStore(), testutil.NewLogger(), 42)
		list, prefs := facultyFiles(t)
		_, err := svc.ProcessFacultyFiles(ctx, "ECE", list, prefs)

		var perr *ingest.ProcessingError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "Schema 'ECE' does not exist.", perr.Message)
	})

	t.Run("no subjects", func(t *testing.T) {
		store := inmemdb.NewSchemaStore()
		require.NoError(t, store.CreateSchema(ctx, "ECE"))
		svc := allocation.NewService(store, testutil.NewLogger(), 42)
		list, prefs := facultyFiles(t)
		details, err := svc.ProcessFacultyFiles(ctx, "ECE", list, prefs)

		var perr *ingest.ProcessingError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "Table 'AllSubjects' not found in the schema.", perr.Message)
		assert.Contains(t, perr.Details.Stdout, "Table 'AllSubjects' not found")
		assert.Equal(t, perr.Details, details)
	})

	t.Run("missing column", func(t *testing.T) {
		store := inmemdb.NewSchemaStore()
		seedDepartment(t, store, "ECE", "CS101 / Maths (1stYear) (CSE-A)")
		svc := allocation.NewService(store, testutil.NewLogger(), 42)
		_, prefs := facultyFiles(t)
		list := testutil.CSV(t, [][]string{{"Name"}, {"Alice"}})
		_, err := svc.ProcessFacultyFiles(ctx, "ECE", ingest.File{Name: "list.csv", Data: bytes.NewReader(list)}, prefs)

		var perr *ingest.ProcessingError
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, perr.Message, "Employee_ID")
	})
}
