// Package ingest turns uploaded spreadsheets into department tables.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

// File is an uploaded spreadsheet.
type File struct {
	Name string
	Data io.Reader
}

// ColumnCleaner turns a header cell into a column name.
type ColumnCleaner func(string) string

// CleanColumn replaces non-word runs with `_`.
func CleanColumn(name string) string {
	return core.CleanIdentifier(name)
}

// CleanYearColumn is CleanColumn with a `col_` prefix for names starting with a digit.
func CleanYearColumn(name string) string {
	name = CleanColumn(name)
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "col_" + name
	}
	return name
}

// ReadSheet reads the first worksheet of an .xlsx file, or a .csv file, into a table.
// The first row is the header; blank cells are NULL.
func ReadSheet(f File, clean ColumnCleaner) (*schema.Table, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(f.Name)); ext {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(f.Data)
	case ".csv":
		records, err = readCSV(f.Data)
	default:
		return nil, core.NewBadRequestError("Unsupported file type '%s': upload .xlsx or .csv files", ext)
	}
	if err != nil {
		return nil, core.NewBadRequestError("Could not read '%s': %v", f.Name, err)
	}
	return tableFromRecords(f.Name, records, clean)
}

// ReadCSV reads f as CSV whatever its name.
func ReadCSV(f File, clean ColumnCleaner) (*schema.Table, error) {
	records, err := readCSV(f.Data)
	if err != nil {
		return nil, core.NewBadRequestError("Could not read '%s': %v", f.Name, err)
	}
	return tableFromRecords(f.Name, records, clean)
}

func tableFromRecords(name string, records [][]string, clean ColumnCleaner) (*schema.Table, error) {
	if len(records) == 0 {
		return nil, core.NewBadRequestError("'%s' is empty", name)
	}

	t := &schema.Table{}
	for i, header := range records[0] {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Unnamed: %d", i)
		}
		col := uniqueName(t, clean(header))
		t.Columns = append(t.Columns, schema.Column{Name: col, Type: schema.TypeText, Nullable: true})
	}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]null.String, len(t.Columns))
		for i := 0; i < len(rec) && i < len(row); i++ {
			if v := strings.TrimSpace(rec[i]); v != "" {
				row[i] = null.StringFrom(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheet")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", sheets[0])
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

func uniqueName(t *schema.Table, name string) string {
	candidate := name
	for n := 1; t.ColumnIndex(candidate) >= 0; n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	return candidate
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// DropEmptyColumns removes the columns holding only NULLs.
func DropEmptyColumns(t *schema.Table) {
	keep := make([]int, 0, len(t.Columns))
	for j := range t.Columns {
		for _, row := range t.Rows {
			if row[j].Valid {
				keep = append(keep, j)
				break
			}
		}
	}
	if len(keep) == len(t.Columns) {
		return
	}

	cols := make([]schema.Column, len(keep))
	for i, j := range keep {
		cols[i] = t.Columns[j]
	}
	for r, row := range t.Rows {
		nrow := make([]null.String, len(keep))
		for i, j := range keep {
			nrow[i] = row[j]
		}
		t.Rows[r] = nrow
	}
	t.Columns = cols
}
