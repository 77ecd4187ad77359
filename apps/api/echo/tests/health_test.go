package tests

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/slotwise/apps/api/echo"
	"github.com/slotwise/slotwise/core/timetable"
)

func Test_health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := setupWithHealth(t, func(context.Context) error { return nil })
		require.NoError(t, app.store.CreateSchema(context.Background(), "CSE"))

		req, rec := newRequest(http.MethodGet, "/health")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		var resp echoapi.HealthResponse
		decode(t, rec, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "connected", resp.Database)
		assert.NotEmpty(t, resp.CurrentTime)
		assert.Equal(t, timetable.Slots, resp.PredefinedSlots)
		assert.Equal(t, timetable.Days, resp.PredefinedDays)
		assert.Equal(t, []string{"CSE"}, resp.AvailableSchemas)
	})

	t.Run("unhealthy", func(t *testing.T) {
		app := setupWithHealth(t, func(context.Context) error { return errors.New("connection refused") })

		req, rec := newRequest(http.MethodGet, "/health")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.UnhealthyResponse{Status: "unhealthy", Error: "connection refused"}),
		}, rec)
	})
}

func Test_metrics(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/api/schemas")
	app.ServeHTTP(rec, req)
	req, rec = newRequest(http.MethodGet, "/api/timetables/classes")
	app.ServeHTTP(rec, req)
	req, rec = newMultipartRequest(t, "/api/generate-timetable", nil)
	app.ServeHTTP(rec, req)
	_ = generate(t, app)

	requests, err := testutil.GatherAndCount(app.metrics, "slotwise_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 4, requests)
	generations, err := testutil.GatherAndCount(app.metrics, "slotwise_timetable_generations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, generations)
}
