package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/slotwise/slotwise/core"
)

const (
	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
	outcomeFailed  = "failed"
)

type metrics struct {
	requests    *prometheus.CounterVec
	generations *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwise",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotwise",
			Subsystem: "timetable",
			Name:      "generations_total",
			Help:      "Timetable generation requests by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.generations)
	return m
}

// middleware counts every request once its response status is known.
func (m *metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, ctx.Request().Method, strconv.Itoa(ctx.Response().Status)).Inc()
		return nil
	}
}

func (m *metrics) generation(outcome string) {
	m.generations.WithLabelValues(outcome).Inc()
}

func generationOutcome(err error) string {
	if appErr, ok := core.AsAppError(err); ok && appErr.Kind == core.KindBadRequest {
		return outcomeInvalid
	}
	return outcomeFailed
}
