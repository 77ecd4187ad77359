package schema

import (
	"strconv"
	"strings"

	"github.com/volatiletech/null/v8"
)

// Column types understood by the stores.
const (
	TypeText    = "text"
	TypeCode    = "varchar(9)"
	TypeInteger = "integer"
)

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key"`
}

// Table is an in-memory copy of a department table, rows in insertion order.
// The surrogate `id` column is managed by the stores and never part of Columns.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]null.String
}

func NewTable(name string, columns ...string) *Table {
	t := &Table{Name: name}
	for _, col := range columns {
		t.AddColumn(col, TypeText)
	}
	return t
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// AddColumn appends a nullable column unless it exists; existing rows get NULL.
func (t *Table) AddColumn(name, typ string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Columns = append(t.Columns, Column{Name: name, Type: typ, Nullable: true})
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], null.String{})
	}
	return len(t.Columns) - 1
}

// AppendRow adds a row of the given values; missing trailing values are NULL.
func (t *Table) AppendRow(values ...null.String) {
	row := make([]null.String, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Get returns the value of `col` in row i; unknown columns read as NULL.
func (t *Table) Get(i int, col string) null.String {
	idx := t.ColumnIndex(col)
	if idx < 0 || i >= len(t.Rows) {
		return null.String{}
	}
	return t.Rows[i][idx]
}

func (t *Table) Set(i int, col string, v null.String) {
	idx := t.ColumnIndex(col)
	if idx < 0 {
		idx = t.AddColumn(col, TypeText)
	}
	t.Rows[i][idx] = v
}

// Records returns the rows as column -> value maps, NULLs as nil.
func (t *Table) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]interface{}, len(t.Columns))
		for j, col := range t.Columns {
			rec[col.Name] = CellValue(col, row[j])
		}
		records[i] = rec
	}
	return records
}

// CellValue converts a stored cell to its JSON value: integers for integer columns, strings otherwise.
func CellValue(col Column, v null.String) interface{} {
	if !v.Valid {
		return nil
	}
	if col.Type == TypeInteger {
		if n, err := strconv.Atoi(strings.TrimSpace(v.String)); err == nil {
			return n
		}
	}
	return v.String
}

// Str is shorthand for a valid null.String; blank strings stay valid.
func Str(s string) null.String {
	return null.StringFrom(s)
}
