package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/allocation"
	"github.com/slotwise/slotwise/core/ingest"
)

type ingestApi struct {
	years      *ingest.YearService
	allocation *allocation.Service
	validate   *validator.Validate
}

func registerIngestAPI(g *echo.Group, years *ingest.YearService, alloc *allocation.Service, validate *validator.Validate) {
	api := ingestApi{years: years, allocation: alloc, validate: validate}

	g.POST("/process-year-files", api.processYearFiles)
	g.POST("/process-faculty-files", api.processFacultyFiles)
}

type (
	DepartmentForm struct {
		DepartmentName string `json:"department_name" form:"department_name" validate:"required,ident,department"`
	}

	ProcessedResponse struct {
		Success bool           `json:"success"`
		Message string         `json:"message"`
		Details ingest.Details `json:"details"`
	}
)

func (df *DepartmentForm) Validate(validate *validator.Validate) error {
	df.DepartmentName = core.CleanString(df.DepartmentName)
	return validate.Struct(df)
}

func (api *ingestApi) department(ctx echo.Context) (string, error) {
	var form DepartmentForm
	if err := ctx.Bind(&form); err != nil {
		return "", errors.Wrap(err, "binding to DepartmentForm")
	}
	if err := form.Validate(api.validate); err != nil {
		return "", err
	}
	return form.DepartmentName, nil
}

// Handlers

func (api *ingestApi) processYearFiles(ctx echo.Context) error {
	dept, err := api.department(ctx)
	if err != nil {
		return err
	}
	mf, err := ctx.MultipartForm()
	if err != nil {
		return core.NewBadRequestError("Missing files")
	}
	headers := mf.File["files"]
	if len(headers) == 0 {
		return core.NewBadRequestError("Missing files")
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		f, err := openUpload(fh)
		if err != nil {
			return err
		}
		defer f.close()
		files = append(files, f.File)
	}

	details, err := api.years.ProcessYearFiles(ctx.Request().Context(), dept, files)
	if err != nil {
		return errors.Wrap(err, "processing year files")
	}
	return ctx.JSON(http.StatusOK, ProcessedResponse{Success: true, Message: "Year files processed successfully", Details: details})
}

func (api *ingestApi) processFacultyFiles(ctx echo.Context) error {
	dept, err := api.department(ctx)
	if err != nil {
		return err
	}
	list, err := formFile(ctx, "faculty_list")
	if err != nil {
		return err
	}
	defer list.close()
	prefs, err := formFile(ctx, "faculty_preferences")
	if err != nil {
		return err
	}
	defer prefs.close()

	details, err := api.allocation.ProcessFacultyFiles(ctx.Request().Context(), dept, list.File, prefs.File)
	if err != nil {
		return errors.Wrap(err, "processing faculty files")
	}
	return ctx.JSON(http.StatusOK, ProcessedResponse{Success: true, Message: "Faculty files processed successfully", Details: details})
}

// upload is an opened multipart file.
type upload struct {
	ingest.File
	close func() error
}

func openUpload(fh *multipart.FileHeader) (upload, error) {
	f, err := fh.Open()
	if err != nil {
		return upload{}, errors.Wrapf(err, "opening %s", fh.Filename)
	}
	return upload{File: ingest.File{Name: fh.Filename, Data: f}, close: f.Close}, nil
}

func formFile(ctx echo.Context, key string) (upload, error) {
	fh, err := ctx.FormFile(key)
	if err != nil {
		return upload{}, core.NewBadRequestError("Missing %s file", key)
	}
	return openUpload(fh)
}
