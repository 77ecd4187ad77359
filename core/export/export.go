// Package export renders generated timetables as spreadsheet downloads.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/timetable"
)

// Workbook file names inside the archive.
const (
	ClassWorkbook   = "class_timetables.xlsx"
	TeacherWorkbook = "teacher_timetables.xlsx"
	VenueWorkbook   = "venue_timetables.xlsx"
)

const maxSheetName = 31

// sheet is one timetable grid rendered as rows of text.
type sheet struct {
	name string
	grid timetable.Grid
	text func(c *timetable.Cell) string
}

func classText(c *timetable.Cell) string {
	text := c.Code + "\n" + c.Teacher
	if c.Venue != "" {
		text += "\n" + c.Venue
	}
	return text
}

func teacherText(c *timetable.Cell) string {
	text := fmt.Sprintf("%s\n%d-%s", c.Code, c.Year, c.Section)
	if c.Venue != "" {
		text += "\n" + c.Venue
	}
	return text
}

func venueText(c *timetable.Cell) string {
	return fmt.Sprintf("%s\n%s\n%d-%s", c.Code, c.Teacher, c.Year, c.Section)
}

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// sheetName makes name a valid and unused worksheet name.
func sheetName(name string, used map[string]bool) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if name == "" {
		name = "Sheet"
	}
	base := core.Truncate(name, maxSheetName)
	name = base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = core.Truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func header() []interface{} {
	row := []interface{}{"Time"}
	for _, day := range timetable.Days {
		row = append(row, day)
	}
	return row
}

// writeWorkbook renders each sheet as a `Time, Monday..Friday` table, one row per slot.
func writeWorkbook(sheets []sheet) ([]byte, error) {
	f := excelize.NewFile()
	const defaultSheet = "Sheet1"

	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating cell style")
	}
	lastCell, err := excelize.CoordinatesToCellName(len(timetable.Days)+1, len(timetable.Slots)+1)
	if err != nil {
		return nil, errors.Wrap(err, "computing sheet range")
	}
	lastCol := strings.TrimRight(lastCell, "0123456789")

	used := make(map[string]bool)
	for _, s := range sheets {
		name := sheetName(s.name, used)
		f.NewSheet(name)

		rows := [][]interface{}{header()}
		for _, slot := range timetable.Slots {
			row := []interface{}{slot}
			for _, day := range timetable.Days {
				e := s.grid[day][slot]
				switch {
				case e.Cell != nil:
					row = append(row, s.text(e.Cell))
				case e.Label != "":
					row = append(row, e.Label)
				default:
					row = append(row, timetable.Free)
				}
			}
			rows = append(rows, row)
		}
		for i := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &rows[i]); err != nil {
				return nil, errors.Wrapf(err, "writing sheet %s", name)
			}
		}
		if err := f.SetCellStyle(name, "A1", lastCell, style); err != nil {
			return nil, errors.Wrapf(err, "styling sheet %s", name)
		}
		if err := f.SetColWidth(name, "A", lastCol, 18); err != nil {
			return nil, errors.Wrapf(err, "sizing sheet %s", name)
		}
	}
	if len(sheets) > 0 && !used[strings.ToLower(defaultSheet)] {
		f.DeleteSheet(defaultSheet)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}

func classSheets(tt *timetable.Timetable) []sheet {
	sheets := make([]sheet, len(tt.Classes))
	for i, c := range tt.Classes {
		sheets[i] = sheet{name: fmt.Sprintf("Year%d-%s", c.Year, c.Section), grid: c.Timetable, text: classText}
	}
	return sheets
}

func teacherSheets(tt *timetable.Timetable) []sheet {
	sheets := make([]sheet, len(tt.Teachers))
	for i, t := range tt.Teachers {
		sheets[i] = sheet{name: t.TeacherName, grid: t.Timetable, text: teacherText}
	}
	return sheets
}

func venueSheets(tt *timetable.Timetable) []sheet {
	sheets := make([]sheet, len(tt.Venues))
	for i, v := range tt.Venues {
		sheets[i] = sheet{name: v.VenueName, grid: v.Timetable, text: venueText}
	}
	return sheets
}

type Service struct {
	repo   timetable.Repository
	logger core.Logger
}

func NewService(repo timetable.Repository, logger core.Logger) *Service {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		panic(err)
	}
	return &Service{repo: repo, logger: logger}
}

// Filename names the archive of a timetable schema.
func Filename(schemaName string) string {
	return fmt.Sprintf("timetables_%s.zip", schemaName)
}

// Archive builds the class, teacher and venue workbooks of a generation and zips them.
func (svc *Service) Archive(ctx context.Context, schemaName string) ([]byte, error) {
	tt, err := svc.repo.Get(ctx, schemaName)
	if errors.Cause(err) == timetable.ErrNotFound {
		return nil, core.NewNotFoundError("Schema %s not found", schemaName)
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading timetable %s", schemaName)
	}
	tt.Sort()
	tt.Arrange()

	names := []string{ClassWorkbook, TeacherWorkbook, VenueWorkbook}
	sources := [][]sheet{classSheets(tt), teacherSheets(tt), venueSheets(tt)}
	books := make([][]byte, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i := range names {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := writeWorkbook(sources[i])
			if err != nil {
				return errors.Wrapf(err, "building %s", names[i])
			}
			books[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, errors.Wrapf(err, "adding %s", name)
		}
		if _, err := w.Write(books[i]); err != nil {
			return nil, errors.Wrapf(err, "adding %s", name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing archive")
	}

	svc.logger.Info("timetable exported", map[string]interface{}{"schema": schemaName, "size": buf.Len()})
	return buf.Bytes(), nil
}
