package schema

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
)

// TimetablePrefix starts the name of every generated timetable schema.
const TimetablePrefix = "timetable_"

var protectedSchemas = map[string]bool{
	"defaultdb":          true,
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
	"login_details":      true,
	"public":             true,
	"pg_catalog":         true,
	"pg_toast":           true,
}

// IsProtected reports whether the schema belongs to the system and must never be listed or dropped.
func IsProtected(name string) bool {
	lname := strings.ToLower(name)
	return protectedSchemas[lname] || strings.HasPrefix(lname, "pg_")
}

var (
	sortedTableNames = []string{
		"SortedTable_SortedTable_xlsx",
		"SortedTable_SortedTable",
		"sorted_table",
		"sorted_tables",
		"sortedtable",
	}
	formattedTableNames = []string{
		"SortedTableFormatted",
		"SortedTable_Formatted",
		"sortedtableformatted",
		"Formatted_SortedTable",
		"SortedTableFormatted_SortedTableFormatted",
		"SortedTableFormatted_SortedTableFormatted_xlsx",
	}
	uniqueSubjectsTableNames = []string{
		"UniqueSubjects",
		"Unique_Subjects",
		"uniquesubjects",
		"unique_subjects",
		"UniqueSubjects_UniqueSubjects",
		"UniqueSubjects_UniqueSubjects_xlsx",
	}
)

type (
	Pagination struct {
		Total   int  `json:"total"`
		Limit   int  `json:"limit"`
		Offset  int  `json:"offset"`
		HasMore bool `json:"hasMore"`
	}

	TablePage struct {
		Success    bool       `json:"success"`
		Database   string     `json:"database"`
		TableName  string     `json:"tableName"`
		Columns    []Column   `json:"columns,omitempty"`
		Pagination Pagination `json:"pagination"`
		Data       []Row      `json:"data"`
	}

	SortedTableQuery struct {
		core.Page
		SortBy string
		Order  string // ASC or DESC
	}
)

// ExportKind selects the table merged by ExportCSV.
type ExportKind string

const (
	ExportFormatted      ExportKind = "SortedTableFormatted"
	ExportUniqueSubjects ExportKind = "UniqueSubjects"
)

// Export is a merged CSV download.
type Export struct {
	Filename          string
	Data              []byte
	FailedDepartments []string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
	).Check(); err != nil {
		panic(err)
	}
	return &Service{store: store}
}

// ListSchemas returns every non-protected schema in name order.
func (svc *Service) ListSchemas(ctx context.Context) ([]string, error) {
	all, err := svc.store.ListSchemas(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing schemas")
	}
	schemas := make([]string, 0, len(all))
	for _, s := range all {
		if !IsProtected(s) {
			schemas = append(schemas, s)
		}
	}
	sort.Strings(schemas)
	return schemas, nil
}

// ListDepartments returns the department schemas: timetable generations excluded.
func (svc *Service) ListDepartments(ctx context.Context) ([]string, error) {
	all, err := svc.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	depts := make([]string, 0, len(all))
	for _, s := range all {
		if !strings.HasPrefix(strings.ToLower(s), "timetable") {
			depts = append(depts, s)
		}
	}
	return depts, nil
}

func (svc *Service) DeleteDepartment(ctx context.Context, name string) error {
	name = core.CleanString(name)
	switch {
	case name == "":
		return core.NewBadRequestError("Department name is required")
	case IsProtected(name):
		return core.NewForbiddenError("Cannot delete protected schema: %s", name)
	}

	schemas, err := svc.store.ListSchemas(ctx)
	if err != nil {
		return errors.Wrap(err, "listing schemas")
	}
	if !contains(schemas, name) {
		return core.NewNotFoundError("Department '%s' not found", name)
	}
	if strings.HasPrefix(name, TimetablePrefix) {
		return core.NewBadRequestError("Use the timetable deletion endpoint for timetable schemas")
	}

	if err := svc.store.DropSchema(ctx, name); err != nil {
		return errors.Wrapf(err, "dropping schema %s", name)
	}
	return nil
}

// resolveSchema matches `name` case-insensitively against the listed schemas.
func (svc *Service) resolveSchema(ctx context.Context, name string) (string, []string, error) {
	schemas, err := svc.ListSchemas(ctx)
	if err != nil {
		return "", nil, err
	}
	for _, s := range schemas {
		if strings.EqualFold(s, name) {
			return s, schemas, nil
		}
	}
	return "", schemas, ErrSchemaNotFound
}

// resolveTable returns the first table (in name order) matching one of the candidate names.
func (svc *Service) resolveTable(ctx context.Context, schema string, candidates []string, substring bool) (string, []string, error) {
	tables, err := svc.store.ListTables(ctx, schema)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listing tables of %s", schema)
	}
	sort.Strings(tables)
	for _, table := range tables {
		ltable := strings.ToLower(table)
		for _, candidate := range candidates {
			lcandidate := strings.ToLower(candidate)
			if ltable == lcandidate || (substring && strings.Contains(ltable, lcandidate)) {
				return table, tables, nil
			}
		}
	}
	return "", tables, ErrTableNotFound
}

func (svc *Service) SortedTable(ctx context.Context, name string, q SortedTableQuery) (*TablePage, error) {
	if q.Limit == 0 {
		q.Limit = 100
	}
	if q.Limit < 1 || q.Limit > 1000 {
		return nil, core.NewBadRequestError("limit must be between 1 and 1000")
	}
	if q.Offset < 0 {
		return nil, core.NewBadRequestError("offset must be greater than or equal to 0")
	}
	order := strings.ToUpper(q.Order)
	if order == "" {
		order = "ASC"
	}
	if order != "ASC" && order != "DESC" {
		return nil, core.NewBadRequestError("order must be ASC or DESC")
	}

	schema, schemas, err := svc.resolveSchema(ctx, name)
	if err != nil {
		if err == ErrSchemaNotFound {
			return nil, core.NewNotFoundError("Schema '%s' not found. Available schemas: %s", name, pyList(schemas))
		}
		return nil, err
	}
	table, tables, err := svc.resolveTable(ctx, schema, sortedTableNames, false)
	if err != nil {
		if err == ErrTableNotFound {
			return nil, core.NewNotFoundError("No sorted table found in schema '%s'. Available tables: %s", schema, pyList(tables))
		}
		return nil, err
	}

	columns, err := svc.store.DescribeTable(ctx, schema, table)
	if err != nil {
		return nil, errors.Wrapf(err, "describing %s.%s", schema, table)
	}
	sortColumn := columns[0].Name
	for _, col := range columns {
		if q.SortBy != "" && strings.EqualFold(col.Name, q.SortBy) {
			sortColumn = col.Name
			break
		}
	}

	page, err := svc.page(ctx, schema, table, []core.DBOrdering{{Field: sortColumn, Ascending: order == "ASC"}}, q.Page)
	if err != nil {
		return nil, err
	}
	page.Columns = columns
	return page, nil
}

func (svc *Service) FormattedTable(ctx context.Context, name string, p core.Page) (*TablePage, error) {
	return svc.lookupPage(ctx, name, p, formattedTableNames, "SortedTableFormatted")
}

func (svc *Service) UniqueSubjects(ctx context.Context, name string, p core.Page) (*TablePage, error) {
	return svc.lookupPage(ctx, name, p, uniqueSubjectsTableNames, "UniqueSubjects")
}

func (svc *Service) lookupPage(ctx context.Context, name string, p core.Page, candidates []string, label string) (*TablePage, error) {
	if p.Limit == 0 {
		p.Limit = 1000
	}
	if p.Limit < 1 || p.Limit > 5000 {
		return nil, core.NewBadRequestError("limit must be between 1 and 5000")
	}
	if p.Offset < 0 {
		return nil, core.NewBadRequestError("offset must be greater than or equal to 0")
	}

	schema, _, err := svc.resolveSchema(ctx, name)
	if err != nil {
		if err == ErrSchemaNotFound {
			return nil, core.NewNotFoundError("Schema '%s' not found.", name)
		}
		return nil, err
	}
	table, tables, err := svc.resolveTable(ctx, schema, candidates, true)
	if err != nil {
		if err == ErrTableNotFound {
			return nil, core.NewNotFoundError("%s table not found in schema '%s'. Available tables: %s", label, schema, pyList(tables))
		}
		return nil, err
	}
	return svc.page(ctx, schema, table, []core.DBOrdering{{Field: "id", Ascending: true}}, p)
}

func (svc *Service) page(ctx context.Context, schema, table string, ordering []core.DBOrdering, p core.Page) (*TablePage, error) {
	total, err := svc.store.CountRows(ctx, schema, table)
	if err != nil {
		return nil, errors.Wrapf(err, "counting %s.%s", schema, table)
	}
	rows, err := svc.store.QueryRows(ctx, schema, table, ordering, p)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s.%s", schema, table)
	}
	if rows == nil {
		rows = []Row{}
	}
	return &TablePage{
		Success:   true,
		Database:  schema,
		TableName: table,
		Pagination: Pagination{
			Total:   total,
			Limit:   p.Limit,
			Offset:  p.Offset,
			HasMore: p.HasMore(len(rows), total),
		},
		Data: rows,
	}, nil
}

// ExportCSV merges one table kind across departments into a single CSV.
// Departments without the table are skipped and reported in FailedDepartments.
func (svc *Service) ExportCSV(ctx context.Context, kind ExportKind, departments []string) (*Export, error) {
	var candidates []string
	switch kind {
	case ExportFormatted:
		candidates = formattedTableNames
	case ExportUniqueSubjects:
		candidates = uniqueSubjectsTableNames
	default:
		return nil, core.NewBadRequestError("Unknown export: %s", kind)
	}

	depts := make([]string, 0, len(departments))
	for _, d := range departments {
		if d = core.CleanString(d); d != "" {
			depts = append(depts, d)
		}
	}
	if len(depts) == 0 {
		return nil, core.NewBadRequestError("Select at least one department")
	}

	var (
		header []string
		rows   [][]string
		failed []string
		seen   = make(map[string]bool)
	)
	for _, dept := range depts {
		columns, data, err := svc.readDepartmentTable(ctx, dept, candidates)
		if err != nil {
			if _, ok := core.AsAppError(err); ok {
				failed = append(failed, dept)
				continue
			}
			return nil, err
		}
		if header == nil {
			header = columns
		}
		for _, rec := range data {
			row := make([]string, len(header))
			for j, col := range header {
				if v := rec[col]; v != nil {
					row[j] = fmt.Sprint(v)
				}
			}
			if kind == ExportUniqueSubjects && len(row) > 1 {
				// the second column holds the subject code; the first department listing it wins
				if seen[row[1]] {
					continue
				}
				seen[row[1]] = true
			}
			rows = append(rows, row)
		}
	}
	if header == nil {
		return nil, core.NewNotFoundError("No %s data found for the selected departments", kind)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "writing csv")
	}
	return &Export{
		Filename:          fmt.Sprintf("%s_%s.csv", kind, strings.Join(depts, "_")),
		Data:              buf.Bytes(),
		FailedDepartments: failed,
	}, nil
}

func (svc *Service) readDepartmentTable(ctx context.Context, dept string, candidates []string) ([]string, []Row, error) {
	schema, _, err := svc.resolveSchema(ctx, dept)
	if err != nil {
		if err == ErrSchemaNotFound {
			return nil, nil, core.NewNotFoundError("Schema '%s' not found.", dept)
		}
		return nil, nil, err
	}
	table, _, err := svc.resolveTable(ctx, schema, candidates, true)
	if err != nil {
		if err == ErrTableNotFound {
			return nil, nil, core.NewNotFoundError("table not found in schema '%s'", schema)
		}
		return nil, nil, err
	}

	columns, err := svc.store.DescribeTable(ctx, schema, table)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "describing %s.%s", schema, table)
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	rows, err := svc.store.QueryRows(ctx, schema, table, []core.DBOrdering{{Field: "id", Ascending: true}}, core.Page{})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "querying %s.%s", schema, table)
	}
	return names, rows, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// pyList renders names as ['a', 'b'].
func pyList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
