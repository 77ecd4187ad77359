package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core/export"
	"github.com/slotwise/slotwise/core/timetable"
)

type timetableApi struct {
	svc     *timetable.Service
	export  *export.Service
	metrics *metrics
}

func registerTimetableAPI(g *echo.Group, svc *timetable.Service, exp *export.Service, m *metrics) {
	api := timetableApi{svc: svc, export: exp, metrics: m}

	g.POST("/generate-timetable", api.generate)
	g.GET("/timetables/classes", api.latestClasses)
	g.GET("/timetables/teachers", api.latestTeachers)
	g.GET("/timetables/venues", api.latestVenues)
	g.GET("/timetable-schemas", api.listSchemas)
	g.GET("/timetable/:schema", api.get)
	g.GET("/timetable/:schema/excel", api.excel)
	g.DELETE("/timetable-schema/:name", api.delete)
}

type TimetableResponse struct {
	Success    bool                 `json:"success"`
	SchemaName string               `json:"schema_name"`
	Data       *timetable.Timetable `json:"timetable_data"`
}

// Handlers

func (api *timetableApi) generate(ctx echo.Context) error {
	keys := []string{"faculty", "subjects", "venues", "cdc"}
	opened := make([]upload, len(keys))
	for i, key := range keys {
		f, err := formFile(ctx, key)
		if err != nil {
			api.metrics.generation(outcomeInvalid)
			return err
		}
		defer f.close()
		opened[i] = f
	}
	files := timetable.Files{
		Faculty:  opened[0].File,
		Subjects: opened[1].File,
		Venues:   opened[2].File,
		CDC:      opened[3].File,
	}

	res, err := api.svc.Generate(ctx.Request().Context(), files, ctx.FormValue("sectionConfig"))
	if err != nil {
		api.metrics.generation(generationOutcome(err))
		return errors.Wrap(err, "generating timetable")
	}
	api.metrics.generation(outcomeSuccess)
	return ctx.JSON(http.StatusOK, res)
}

func (api *timetableApi) latest(ctx echo.Context) (*timetable.Timetable, error) {
	_, tt, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return nil, errors.Wrap(err, "reading latest timetable")
	}
	return tt, nil
}

func (api *timetableApi) latestClasses(ctx echo.Context) error {
	tt, err := api.latest(ctx)
	if err != nil {
		return err
	}
	if tt.Classes == nil {
		tt.Classes = []timetable.ClassTimetable{}
	}
	return ctx.JSON(http.StatusOK, tt.Classes)
}

func (api *timetableApi) latestTeachers(ctx echo.Context) error {
	tt, err := api.latest(ctx)
	if err != nil {
		return err
	}
	if tt.Teachers == nil {
		tt.Teachers = []timetable.TeacherTimetable{}
	}
	return ctx.JSON(http.StatusOK, tt.Teachers)
}

func (api *timetableApi) latestVenues(ctx echo.Context) error {
	tt, err := api.latest(ctx)
	if err != nil {
		return err
	}
	if tt.Venues == nil {
		tt.Venues = []timetable.VenueTimetable{}
	}
	return ctx.JSON(http.StatusOK, tt.Venues)
}

func (api *timetableApi) listSchemas(ctx echo.Context) error {
	names, err := api.svc.Schemas(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing timetable schemas")
	}
	if names == nil {
		names = []string{}
	}
	return ctx.JSON(http.StatusOK, SchemasResponse{Success: true, Schemas: names})
}

func (api *timetableApi) get(ctx echo.Context) error {
	name := ctx.Param("schema")
	tt, err := api.svc.Get(ctx.Request().Context(), name)
	if err != nil {
		return errors.Wrap(err, "reading timetable")
	}
	return ctx.JSON(http.StatusOK, TimetableResponse{Success: true, SchemaName: name, Data: tt})
}

func (api *timetableApi) excel(ctx echo.Context) error {
	name := ctx.Param("schema")
	data, err := api.export.Archive(ctx.Request().Context(), name)
	if err != nil {
		return errors.Wrap(err, "exporting timetable")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename(name)))
	return ctx.Blob(http.StatusOK, "application/zip", data)
}

func (api *timetableApi) delete(ctx echo.Context) error {
	name := ctx.Param("name")
	if err := api.svc.Delete(ctx.Request().Context(), name); err != nil {
		return errors.Wrap(err, "deleting timetable")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Timetable schema '%s' deleted successfully", name),
	})
}
