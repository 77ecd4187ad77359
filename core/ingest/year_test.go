package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
	testutil "github.com/slotwise/slotwise/tests"
)

func yearTable() *schema.Table {
	t := schema.NewTable("1stYear", "Subjects", "Section", "Hours", "Elective_I")
	t.AppendRow(schema.Str("CS101 / Maths"), schema.Str("CSE-A"), schema.Str("4.0"), schema.Str("CS150 / AI"))
	t.AppendRow(schema.Str("Elective_I"), schema.Str("CSE-A"), schema.Str("3"), schema.Str("CS151 / ML"))
	t.AppendRow(schema.Str("CS102 / Physics"), schema.Str("CSE-B"), schema.Str("x"))
	return t
}

func TestBuildAllSubjects(t *testing.T) {
	var rep ingest.Report
	all := ingest.BuildAllSubjects([]*schema.Table{yearTable()}, &rep)

	want := [][2]string{
		{"CSE-A (1stYear)", "CS101 / Maths (1stYear) (CSE-A)"},
		{"CSE-A (1stYear)", "CS150 / AI (1stYear)(CSE-A)*"},
		{"CSE-A (1stYear)", "CS151 / ML (1stYear)(CSE-A)*"},
		{"CSE-A (1stYear)", "CS102 / Physics (1stYear) (CSE-A)"},
		{"CSE-B (1stYear)", "CS101 / Maths (1stYear) (CSE-B)"},
		{"CSE-B (1stYear)", "CS102 / Physics (1stYear) (CSE-B)"},
	}
	require.Len(t, all.Rows, len(want))
	for i, w := range want {
		assert.Equal(t, w[0], all.Get(i, "sections").String, "row %d", i)
		assert.Equal(t, w[1], all.Get(i, "subjects").String, "row %d", i)
	}
}

func TestBuildUniqueSubjects(t *testing.T) {
	second := schema.NewTable("2ndYear", "Subjects", "Section", "Hours")
	second.AppendRow(schema.Str("CS101  /  Maths again"), schema.Str("CSE-A"), schema.Str("2"))
	second.AppendRow(schema.Str("CS2010001XYZ / Long code"), schema.Str("CSE-A"), schema.Str("5"))
	second.AppendRow(schema.Str("A/B/C"), schema.Str("CSE-A"), schema.Str("5"))

	unique := ingest.BuildUniqueSubjects([]*schema.Table{yearTable(), second})

	var got []map[string]interface{}
	got = append(got, unique.Records()...)
	assert.Equal(t, []map[string]interface{}{
		{"SubjectCode": "CS101", "Hours": 4},
		{"SubjectCode": "CS150", "Hours": 3},
		{"SubjectCode": "CS151", "Hours": 3},
		{"SubjectCode": "CS2010001", "Hours": 5},
	}, got)
}

func TestYearService_ProcessYearFiles(t *testing.T) {
	store := inmemdb.NewSchemaStore()
	svc := ingest.NewYearService(store, testutil.NewLogger())
	ctx := context.Background()

	year1 := testutil.XLSX(t, [][]interface{}{
		{"Subjects", "Section", "Hours", "Empty"},
		{"CS101 / Maths", "CSE-A", 4, nil},
		{"CS102 / Physics", "CSE-B", 3, nil},
	})
	year2 := testutil.CSV(t, [][]string{
		{"Subjects", "Section", "Hours"},
		{"CS201 / Networks", "CSE-A", "4"},
	})

	details, err := svc.ProcessYearFiles(ctx, "CSE", []ingest.File{
		{Name: "first.xlsx", Data: bytes.NewReader(year1)},
		{Name: "second.csv", Data: bytes.NewReader(year2)},
	})
	require.NoError(t, err)
	assert.Contains(t, details.Stdout, "into table '1stYear'")
	assert.Empty(t, details.Stderr)

	tables, err := store.ListTables(ctx, "CSE")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1stYear", "2ndYear", "AllSubjects", "UniqueSubjects"}, tables)

	first, err := store.ReadTable(ctx, "CSE", "1stYear")
	require.NoError(t, err)
	assert.Equal(t, []string{"Subjects", "Section", "Hours"}, first.ColumnNames())

	// appending to an existing year table
	_, err = svc.ProcessYearFiles(ctx, "CSE", []ingest.File{
		{Name: "first.xlsx", Data: bytes.NewReader(year1)},
	})
	require.NoError(t, err)
	n, err := store.CountRows(ctx, "CSE", "1stYear")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	unique, err := store.CountRows(ctx, "CSE", "UniqueSubjects")
	require.NoError(t, err)
	assert.Equal(t, 3, unique)
}

func TestYearService_ProcessYearFiles_BadFile(t *testing.T) {
	svc := ingest.NewYearService(inmemdb.NewSchemaStore(), testutil.NewLogger())

	_, err := svc.ProcessYearFiles(context.Background(), "CSE", []ingest.File{
		{Name: "first.txt", Data: bytes.NewReader([]byte("x"))},
	})
	require.Error(t, err)
	procErr, ok := err.(*ingest.ProcessingError)
	require.True(t, ok)
	assert.Contains(t, procErr.Details.Stderr, "first.txt")
}

// brokenStore fails every table write.
type brokenStore struct {
	schema.Store
}

func (brokenStore) ReplaceTable(context.Context, string, *schema.Table) error {
	return errors.New("pq: relation already exists")
}

func (brokenStore) AppendTable(context.Context, string, *schema.Table) error {
	return errors.New("pq: relation already exists")
}

func TestYearService_ProcessYearFiles_StoreFails(t *testing.T) {
	svc := ingest.NewYearService(brokenStore{Store: inmemdb.NewSchemaStore()}, testutil.NewLogger())
	year := testutil.CSV(t, [][]string{
		{"Subjects", "Section", "Hours"},
		{"CS101 / Maths", "CSE-A", "4"},
	})

	details, err := svc.ProcessYearFiles(context.Background(), "CSE", []ingest.File{
		{Name: "first.csv", Data: bytes.NewReader(year)},
	})
	require.Error(t, err)
	procErr, ok := err.(*ingest.ProcessingError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, "storing 1stYear: pq: relation already exists", procErr.Message)
	assert.Contains(t, procErr.Details.Stdout, "Schema 'CSE' is ready.")
	assert.Contains(t, procErr.Details.Stderr, "Error: storing 1stYear")
	assert.Equal(t, procErr.Details, details)
}

func TestReport_Failed(t *testing.T) {
	var rep ingest.Report
	assert.Equal(t, context.Canceled, rep.Failed(context.Canceled))
	assert.Empty(t, rep.Details().Stderr)

	orig := &ingest.ProcessingError{Message: "bad file"}
	assert.Same(t, orig, rep.Failed(orig))
}
