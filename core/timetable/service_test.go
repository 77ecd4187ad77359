package timetable_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/timetable"
	inmemdb "github.com/slotwise/slotwise/storage/database/inmem"
	testutil "github.com/slotwise/slotwise/tests"
)

func newTestService() (*timetable.Service, *inmemdb.TimetableRepository) {
	repo := inmemdb.NewTimetableRepository()
	return timetable.NewService(repo, testutil.NewLogger(), core.NewTestConfig().Timetable), repo
}

func assertAppError(t *testing.T, err error, kind core.ErrorKind, msg string) {
	t.Helper()
	appErr, ok := core.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	assert.Equal(t, msg, appErr.Message)
}

func TestService_Generate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res, err := svc.Generate(ctx, sampleFiles(t), `{"1": ["A", "B"]}`)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Timetable generated and saved successfully", res.Message)
	assert.True(t, res.ValidationSummary.SubjectHoursValid)
	assert.False(t, res.ValidationSummary.VenueClashes)
	assert.True(t, strings.HasPrefix(res.SchemaName, "timetable_"))

	names, err := svc.Schemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{res.SchemaName}, names)

	name, tt, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.SchemaName, name)
	require.Len(t, tt.Classes, 2)
	assert.Equal(t, "A", tt.Classes[0].Section)
	for _, teacher := range tt.Teachers {
		assert.Len(t, teacher.Timetable, len(timetable.Days), "teacher grids are arranged")
	}
	require.Len(t, tt.Venues, 2)

	raw, err := svc.Raw(ctx, name)
	require.NoError(t, err)
	assert.Len(t, raw.Classes, 2)
}

func TestService_GenerateFails(t *testing.T) {
	svc, _ := newTestService()
	files := sampleFiles(t)
	files.Subjects = csvFile(t, "subjects.csv", [][]string{{"SubjectCode", "Hours"}, {"CS101T", "7"}})

	_, err := svc.Generate(context.Background(), files, "")
	assertAppError(t, err, core.KindInternal, "Failed to generate timetable after multiple attempts")

	names, err := svc.Schemas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestService_Generate_SameSecond(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	svc.SetNow(func() time.Time { return at })

	var names []string
	for i := 0; i < 3; i++ {
		res, err := svc.Generate(ctx, sampleFiles(t), "")
		require.NoError(t, err)
		names = append(names, res.SchemaName)
	}
	assert.Equal(t, []string{
		"timetable_20240309_140507",
		"timetable_20240309_140507_2",
		"timetable_20240309_140507_3",
	}, names)

	latest, _, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "timetable_20240309_140507_3", latest)

	for n := 4; n <= 9; n++ {
		require.NoError(t, repo.Save(ctx, fmt.Sprintf("timetable_20240309_140507_%d", n), &timetable.Timetable{}))
	}
	_, err = svc.Generate(ctx, sampleFiles(t), "")
	assertAppError(t, err, core.KindConflict, "Timetable schema 'timetable_20240309_140507_9' already exists")
}

func TestService_Latest_NoTimetable(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.Latest(context.Background())
	assertAppError(t, err, core.KindNotFound, "No timetable schema found")
}

func TestService_GetAndDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "timetable_20240101_000000", &timetable.Timetable{
		Classes: []timetable.ClassTimetable{{Year: 1, Section: "A", Timetable: timetable.Grid{}}},
	}))

	tests := []struct {
		name string
		kind core.ErrorKind
		msg  string
	}{
		{"CSE", core.KindBadRequest, "Invalid timetable schema name. Must start with 'timetable_'"},
		{"timetable_19990101_000000", core.KindNotFound, "Timetable schema 'timetable_19990101_000000' not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Get(ctx, tc.name)
			assertAppError(t, err, tc.kind, tc.msg)
			assertAppError(t, svc.Delete(ctx, tc.name), tc.kind, tc.msg)
		})
	}

	tt, err := svc.Get(ctx, "timetable_20240101_000000")
	require.NoError(t, err)
	assert.Len(t, tt.Classes[0].Timetable["Monday"], len(timetable.Slots))

	require.NoError(t, svc.Delete(ctx, "timetable_20240101_000000"))
	_, err = svc.Get(ctx, "timetable_20240101_000000")
	assertAppError(t, err, core.KindNotFound, "Timetable schema 'timetable_20240101_000000' not found")
}
