package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotwise/slotwise/core/timetable"
)

type (
	HealthResponse struct {
		Status           string   `json:"status"`
		Database         string   `json:"database"`
		CurrentTime      string   `json:"current_time"`
		PredefinedSlots  []string `json:"predefined_slots"`
		PredefinedDays   []string `json:"predefined_days"`
		AvailableSchemas []string `json:"available_schemas"`
	}

	UnhealthyResponse struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
)

func (s *server) health(ctx echo.Context) error {
	unhealthy := func(err error) error {
		return ctx.JSON(http.StatusOK, UnhealthyResponse{Status: "unhealthy", Error: err.Error()})
	}

	rctx := ctx.Request().Context()
	if s.HealthCheck != nil {
		if err := s.HealthCheck(rctx); err != nil {
			s.Logger.Error("health check failed", err)
			return unhealthy(err)
		}
	}
	schemas, err := s.SchemaSvc.ListSchemas(rctx)
	if err != nil {
		return unhealthy(err)
	}
	if schemas == nil {
		schemas = []string{}
	}

	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Database:         "connected",
		CurrentTime:      time.Now().Format(time.RFC3339),
		PredefinedSlots:  timetable.Slots,
		PredefinedDays:   timetable.Days,
		AvailableSchemas: schemas,
	})
}
