package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

const headerFailedDepartments = "X-Failed-Departments"

type schemaApi struct {
	svc *schema.Service
}

func registerSchemaAPI(g *echo.Group, svc *schema.Service) {
	api := schemaApi{svc: svc}

	g.GET("/schemas", api.listSchemas)
	g.GET("/schema/:name/sortedtable", api.sortedTable)
	g.GET("/schema/:name/sortedtableformatted", api.formattedTable)
	g.GET("/schema/:name/uniquesubjects", api.uniqueSubjects)
	g.GET("/export/:kind", api.exportCSV)
	g.DELETE("/department/:name", api.deleteDepartment)
}

type (
	SchemasResponse struct {
		Success bool     `json:"success"`
		Schemas []string `json:"schemas"`
	}

	SortedTableQuery struct {
		Limit  int    `query:"limit"`
		Offset int    `query:"offset"`
		SortBy string `query:"sortBy"`
		Order  string `query:"order"`
	}
)

// Handlers

func (api *schemaApi) listSchemas(ctx echo.Context) error {
	names, err := api.svc.ListDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	if names == nil {
		names = []string{}
	}
	return ctx.JSON(http.StatusOK, SchemasResponse{Success: true, Schemas: names})
}

func (api *schemaApi) sortedTable(ctx echo.Context) error {
	var q SortedTableQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to SortedTableQuery")
	}

	page, err := api.svc.SortedTable(ctx.Request().Context(), ctx.Param("name"), schema.SortedTableQuery{
		Page:   core.Page{Limit: q.Limit, Offset: q.Offset},
		SortBy: q.SortBy,
		Order:  q.Order,
	})
	if err != nil {
		return errors.Wrap(err, "reading sorted table")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *schemaApi) formattedTable(ctx echo.Context) error {
	var p core.Page
	if err := ctx.Bind(&p); err != nil {
		return errors.Wrap(err, "binding to Page")
	}

	page, err := api.svc.FormattedTable(ctx.Request().Context(), ctx.Param("name"), p)
	if err != nil {
		return errors.Wrap(err, "reading formatted table")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *schemaApi) uniqueSubjects(ctx echo.Context) error {
	var p core.Page
	if err := ctx.Bind(&p); err != nil {
		return errors.Wrap(err, "binding to Page")
	}

	page, err := api.svc.UniqueSubjects(ctx.Request().Context(), ctx.Param("name"), p)
	if err != nil {
		return errors.Wrap(err, "reading unique subjects")
	}
	return ctx.JSON(http.StatusOK, page)
}

// exportCSV merges a table across `?departments=a,b` (or repeated `departments` params).
func (api *schemaApi) exportCSV(ctx echo.Context) error {
	var depts []string
	for _, v := range ctx.QueryParams()["departments"] {
		depts = append(depts, strings.Split(v, ",")...)
	}

	exp, err := api.svc.ExportCSV(ctx.Request().Context(), schema.ExportKind(ctx.Param("kind")), depts)
	if err != nil {
		return errors.Wrap(err, "exporting csv")
	}

	if len(exp.FailedDepartments) > 0 {
		ctx.Response().Header().Set(headerFailedDepartments, strings.Join(exp.FailedDepartments, ","))
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename))
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", exp.Data)
}

func (api *schemaApi) deleteDepartment(ctx echo.Context) error {
	name := ctx.Param("name")
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), name); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Department '%s' deleted successfully", core.CleanString(name)),
	})
}
