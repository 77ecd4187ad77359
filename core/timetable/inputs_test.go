package timetable_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/timetable"
	testutil "github.com/slotwise/slotwise/tests"
)

func csvFile(t *testing.T, name string, rows [][]string) ingest.File {
	return ingest.File{Name: name, Data: bytes.NewReader(testutil.CSV(t, rows))}
}

func sampleFiles(t *testing.T) timetable.Files {
	return timetable.Files{
		Faculty: csvFile(t, "faculty.csv", [][]string{
			{"Name", "Employee_ID", "SUB_1", "SUB_1_Year", "SUB_1_Class", "SUB_2", "SUB_2_Year", "SUB_2_Class"},
			{"Alice", "E1", "CS101T / Maths", "1", "CSE-A", "CS101T / Maths", "1", "CSE-B"},
			{"Bob", "E2", "CS102P / Lab", "1.0", "CSE-A", "", "", ""},
			{"Eve", "", "CS301T / Networks", "3", "CSE-A", "", "", ""},
		}),
		Subjects: csvFile(t, "subjects.csv", [][]string{
			{"SubjectCode", "Hours"},
			{"CS101T", "3"},
			{"CS102P", "3.0"},
			{"CS301T", "4"},
			{"CS999T", "2"},
		}),
		Venues: csvFile(t, "venues.csv", [][]string{
			{"Venue No", "Venue Name"},
			{"L1", "Lab One"},
			{"L1", "Lab One again"},
			{"", "Nowhere"},
			{"L2", "Lab Two"},
		}),
		CDC: csvFile(t, "cdc.csv", [][]string{
			{"SUB_Year", "SUB_Classes", "Name"},
			{"1", "CSE-A", "Carol"},
			{"2", "CSE-A", "Carol"},
		}),
	}
}

func TestParseSectionConfig(t *testing.T) {
	conf, err := timetable.ParseSectionConfig("")
	require.NoError(t, err)
	require.Len(t, conf, 3)
	assert.Len(t, conf[1], 26)
	assert.Equal(t, "Z", conf[3][25])

	conf, err = timetable.ParseSectionConfig(`{"2": ["A", "C"]}`)
	require.NoError(t, err)
	assert.Equal(t, timetable.SectionConfig{2: {"A", "C"}}, conf)

	for _, raw := range []string{`{"2": "A"}`, `{"two": ["A"]}`, `[`} {
		_, err := timetable.ParseSectionConfig(raw)
		appErr, ok := core.AsAppError(err)
		require.True(t, ok, raw)
		assert.Equal(t, core.KindBadRequest, appErr.Kind)
		assert.Contains(t, appErr.Message, "Invalid section configuration")
	}
}

func TestParseInput(t *testing.T) {
	in, err := timetable.ParseInput(sampleFiles(t), timetable.SectionConfig{1: {"A", "B"}, 3: {"A"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Alice": "E1", "Bob": "E2"}, in.EmployeeIDs)
	assert.Equal(t, []timetable.Venue{{No: "L1", Name: "Lab One"}, {No: "L2", Name: "Lab Two"}}, in.Venues)

	require.Len(t, in.Sections, 3)
	assert.Equal(t, timetable.SectionSubjects{
		Section: timetable.Section{Year: 1, Name: "A"},
		Subjects: []timetable.Subject{
			{Code: "CS101T", Type: timetable.TypeTheory, Hours: 3, Teacher: "Alice"},
			{Code: "CS102P", Type: timetable.TypeLab, Hours: 3, Teacher: "Bob"},
			{Code: timetable.CDCCode, Type: timetable.TypeTheory, Hours: 2, Teacher: "Carol"},
		},
	}, in.Sections[0])
	assert.Equal(t, timetable.SectionSubjects{
		Section:  timetable.Section{Year: 1, Name: "B"},
		Subjects: []timetable.Subject{{Code: "CS101T", Type: timetable.TypeTheory, Hours: 3, Teacher: "Alice"}},
	}, in.Sections[1])
	assert.Equal(t, timetable.Section{Year: 3, Name: "A"}, in.Sections[2].Section)
}

func TestParseInput_SkipsEmptySections(t *testing.T) {
	in, err := timetable.ParseInput(sampleFiles(t), timetable.SectionConfig{2: {"A", "B"}})
	require.NoError(t, err)
	// year 2 only has a CDC
	require.Len(t, in.Sections, 1)
	assert.Equal(t, timetable.CDCCode, in.Sections[0].Subjects[0].Code)
}

func TestParseInput_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(t *testing.T, files *timetable.Files)
		msg    string
	}{
		{
			"missing column",
			func(t *testing.T, files *timetable.Files) {
				files.Venues = csvFile(t, "venues.csv", [][]string{{"Venue No"}, {"L1"}})
			},
			"'venues' is missing the 'Venue Name' column",
		},
		{
			"bad hours",
			func(t *testing.T, files *timetable.Files) {
				files.Subjects = csvFile(t, "subjects.csv", [][]string{{"SubjectCode", "Hours"}, {"CS101T", "three"}})
			},
			`invalid hours "three" for CS101T`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files := sampleFiles(t)
			tc.modify(t, &files)

			_, err := timetable.ParseInput(files, timetable.DefaultSectionConfig())
			appErr, ok := core.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, core.KindBadRequest, appErr.Kind)
			assert.Contains(t, appErr.Message, tc.msg)
		})
	}
}
