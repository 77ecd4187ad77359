package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/export"
	"github.com/slotwise/slotwise/core/timetable"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
	testutil "github.com/slotwise/slotwise/tests"
)

const schemaName = "timetable_20240309_140507"

func sampleTimetable() *timetable.Timetable {
	classGrid := timetable.Grid{
		"Monday": {
			"8:00-8:50":  {Cell: &timetable.Cell{Code: "CS101T", Teacher: "Alice", Type: "T"}},
			"9:50-10:40": {Cell: &timetable.Cell{Code: "CS102P", Teacher: "Bob", Type: "P", Venue: "L1 - Lab One"}},
			"8:50-9:40":  {Label: timetable.Free},
		},
	}
	return &timetable.Timetable{
		Classes: []timetable.ClassTimetable{
			{Year: 2, Section: "A", Timetable: timetable.Grid{}},
			{Year: 1, Section: "A", Timetable: classGrid},
		},
		Teachers: []timetable.TeacherTimetable{
			{TeacherName: "Professor Alexandra Montgomery-Smith", Timetable: timetable.Grid{
				"Monday": {"8:00-8:50": {Cell: &timetable.Cell{Year: 1, Section: "A", Code: "CS101T", Type: "T"}}},
			}},
			{TeacherName: "Bob", Timetable: timetable.Grid{}},
		},
		Venues: []timetable.VenueTimetable{
			{VenueID: "L1", VenueName: "Lab One", Timetable: timetable.Grid{
				"Monday": {"9:50-10:40": {Cell: &timetable.Cell{Year: 1, Section: "A", Code: "CS102P", Teacher: "Bob"}}},
			}},
		},
	}
}

func openArchive(t *testing.T, data []byte) map[string]*excelize.File {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	books := make(map[string]*excelize.File)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		book, err := excelize.OpenReader(bytes.NewReader(content))
		require.NoError(t, err)
		books[f.Name] = book
	}
	return books
}

func cellValue(t *testing.T, f *excelize.File, sheet, axis string) string {
	v, err := f.GetCellValue(sheet, axis)
	require.NoError(t, err)
	return v
}

func TestService_Archive(t *testing.T) {
	repo := inmemdb.NewTimetableRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, schemaName, sampleTimetable()))
	svc := export.NewService(repo, testutil.NewLogger())

	data, err := svc.Archive(ctx, schemaName)
	require.NoError(t, err)
	books := openArchive(t, data)
	require.Len(t, books, 3)

	classes := books[export.ClassWorkbook]
	require.NotNil(t, classes)
	assert.Equal(t, []string{"Year1-A", "Year2-A"}, classes.GetSheetList())

	header, err := classes.GetRows("Year1-A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, header[0])
	assert.Len(t, header, len(timetable.Slots)+1)

	assert.Equal(t, "8:00-8:50", cellValue(t, classes, "Year1-A", "A2"))
	assert.Equal(t, "CS101T\nAlice", cellValue(t, classes, "Year1-A", "B2"))
	assert.Equal(t, "FREE", cellValue(t, classes, "Year1-A", "B3"))
	assert.Equal(t, "BREAK", cellValue(t, classes, "Year1-A", "B4"))
	assert.Equal(t, "CS102P\nBob\nL1 - Lab One", cellValue(t, classes, "Year1-A", "B5"))
	assert.Equal(t, "FREE", cellValue(t, classes, "Year1-A", "C2"))

	teachers := books[export.TeacherWorkbook]
	require.NotNil(t, teachers)
	sheets := teachers.GetSheetList()
	require.Len(t, sheets, 2)
	assert.Equal(t, "Bob", sheets[0])
	assert.Equal(t, "Professor Alexandra Montgomery-", sheets[1])
	assert.Equal(t, "CS101T\n1-A", cellValue(t, teachers, sheets[1], "B2"))
	assert.Equal(t, "FREE", cellValue(t, teachers, sheets[1], "B3"))
	for _, sheet := range sheets {
		assert.Equal(t, "BREAK", cellValue(t, teachers, sheet, "B4"), sheet)
		assert.Equal(t, "LUNCH", cellValue(t, teachers, sheet, "F7"), sheet)
	}

	venues := books[export.VenueWorkbook]
	require.NotNil(t, venues)
	assert.Equal(t, []string{"Lab One"}, venues.GetSheetList())
	assert.Equal(t, "CS102P\nBob\n1-A", cellValue(t, venues, "Lab One", "B5"))
	assert.Equal(t, "BREAK", cellValue(t, venues, "Lab One", "C4"))
	assert.Equal(t, "LUNCH", cellValue(t, venues, "Lab One", "B7"))
	assert.Equal(t, "FREE", cellValue(t, venues, "Lab One", "B2"))
}

func TestService_Archive_NotFound(t *testing.T) {
	svc := export.NewService(inmemdb.NewTimetableRepository(), testutil.NewLogger())

	_, err := svc.Archive(context.Background(), "timetable_19990101_000000")
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindNotFound, appErr.Kind)
	assert.Equal(t, "Schema timetable_19990101_000000 not found", appErr.Message)
}

func TestFilename(t *testing.T) {
	assert.True(t, strings.HasSuffix(export.Filename(schemaName), ".zip"))
	assert.Equal(t, "timetables_"+schemaName+".zip", export.Filename(schemaName))
}
