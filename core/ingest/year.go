package ingest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

const (
	AllSubjectsTable    = "AllSubjects"
	UniqueSubjectsTable = "UniqueSubjects"
)

// YearTables name the tables the year files are stored in, in upload order.
var YearTables = []string{"1stYear", "2ndYear", "3rdYear", "4thYear"}

// Details is the processing log returned to the UI.
type Details struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Report collects the processing log.
type Report struct {
	out, errOut bytes.Buffer
}

func (r *Report) Printf(format string, args ...interface{}) {
	fmt.Fprintf(&r.out, format+"\n", args...)
}

func (r *Report) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(&r.errOut, format+"\n", args...)
}

func (r *Report) Details() Details {
	return Details{Stdout: r.out.String(), Stderr: r.errOut.String()}
}

// Failed turns an error of a processing run into a ProcessingError carrying the log.
// Cancellation is passed through as is.
func (r *Report) Failed(err error) error {
	cause := errors.Cause(err)
	if pe, ok := cause.(*ProcessingError); ok {
		return pe
	}
	if cause == context.Canceled || cause == context.DeadlineExceeded {
		return err
	}
	r.Errorf("Error: %v", err)
	return &ProcessingError{Message: err.Error(), Details: r.Details()}
}

// ProcessingError is a failed run: the message plus the log up to the failure.
type ProcessingError struct {
	Message string
	Details Details
}

func (e *ProcessingError) Error() string {
	return e.Message
}

type YearService struct {
	store  schema.Store
	logger core.Logger
}

func NewYearService(store schema.Store, logger core.Logger) *YearService {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		panic(err)
	}
	return &YearService{store: store, logger: logger}
}

// ProcessYearFiles stores up to four year files in the department schema, then rebuilds
// the AllSubjects and UniqueSubjects tables from every year table.
func (svc *YearService) ProcessYearFiles(ctx context.Context, dept string, files []File) (Details, error) {
	var rep Report
	if err := svc.processYearFiles(ctx, dept, files, &rep); err != nil {
		svc.logger.Warn("year files processing failed", map[string]interface{}{"department": dept, "error": err.Error()})
		return rep.Details(), rep.Failed(err)
	}
	svc.logger.Info("year files processed", map[string]interface{}{"department": dept, "files": len(files)})
	return rep.Details(), nil
}

func (svc *YearService) processYearFiles(ctx context.Context, dept string, files []File, rep *Report) error {
	if err := svc.store.CreateSchema(ctx, dept); err != nil {
		return errors.Wrapf(err, "creating schema %s", dept)
	}
	rep.Printf("Schema '%s' is ready.", dept)

	for i, f := range files {
		if i >= len(YearTables) {
			rep.Printf("Warning: Only processing first %d files.", len(YearTables))
			break
		}
		t, err := ReadSheet(f, CleanYearColumn)
		if err != nil {
			rep.Errorf("Error reading '%s': %v", f.Name, err)
			return &ProcessingError{Message: err.Error(), Details: rep.Details()}
		}
		DropEmptyColumns(t)
		t.Name = YearTables[i]
		if err := svc.store.AppendTable(ctx, dept, t); err != nil {
			return errors.Wrapf(err, "storing %s", t.Name)
		}
		rep.Printf("Stored first sheet from '%s' into table '%s' (%d rows).", f.Name, t.Name, len(t.Rows))
	}

	years, err := svc.readYearTables(ctx, dept)
	if err != nil {
		return err
	}

	all := BuildAllSubjects(years, rep)
	if err := svc.store.ReplaceTable(ctx, dept, all); err != nil {
		return errors.Wrapf(err, "storing %s", all.Name)
	}
	rep.Printf("%s table created successfully! (%d rows)", all.Name, len(all.Rows))

	unique := BuildUniqueSubjects(years)
	if err := svc.store.ReplaceTable(ctx, dept, unique); err != nil {
		return errors.Wrapf(err, "storing %s", unique.Name)
	}
	rep.Printf("%s table created successfully! (%d rows)", unique.Name, len(unique.Rows))

	rep.Printf("All data has been processed and stored in schema '%s'.", dept)
	return nil
}

func (svc *YearService) readYearTables(ctx context.Context, dept string) ([]*schema.Table, error) {
	existing, err := svc.store.ListTables(ctx, dept)
	if err != nil {
		return nil, errors.Wrapf(err, "listing tables of %s", dept)
	}
	var tables []*schema.Table
	for _, name := range YearTables {
		found := false
		for _, e := range existing {
			if e == name {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		t, err := svc.store.ReadTable(ctx, dept, name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// BuildAllSubjects expands every year table into (section, subject) pairs.
// The first column lists subjects and the second sections; a subject naming another
// column of the table stands for that column's values (elective groups).
func BuildAllSubjects(years []*schema.Table, rep *Report) *schema.Table {
	all := schema.NewTable(AllSubjectsTable, "sections", "subjects")
	for _, t := range years {
		if len(t.Columns) < 2 {
			rep.Printf("Skipping table '%s' as it doesn't have enough columns.", t.Name)
			continue
		}
		subjectCol, sectionCol := t.Columns[0].Name, t.Columns[1].Name
		extra := make(map[string]bool)
		for _, col := range t.Columns[2:] {
			extra[col.Name] = true
		}

		var subjects, sections []string
		seen := make(map[string]bool)
		for i := range t.Rows {
			if v := t.Get(i, subjectCol); v.Valid {
				subjects = append(subjects, v.String)
			}
			if v := t.Get(i, sectionCol); v.Valid && !seen[v.String] {
				seen[v.String] = true
				sections = append(sections, v.String)
			}
		}

		for _, section := range sections {
			sectionEntry := fmt.Sprintf("%s (%s)", section, t.Name)
			for _, subject := range subjects {
				if !extra[subject] {
					all.AppendRow(schema.Str(sectionEntry), schema.Str(fmt.Sprintf("%s (%s) (%s)", subject, t.Name, section)))
					continue
				}
				for i := range t.Rows {
					if t.Get(i, sectionCol).String != section {
						continue
					}
					if v := t.Get(i, subject); v.Valid && v.String != "" {
						all.AppendRow(schema.Str(sectionEntry), schema.Str(fmt.Sprintf("%s (%s)(%s)*", v.String, t.Name, section)))
					}
				}
			}
		}
	}
	return all
}

// BuildUniqueSubjects lists every subject code once with its weekly hours.
// Codes come from `CODE / Title` values of the first column, or of the column it names.
func BuildUniqueSubjects(years []*schema.Table) *schema.Table {
	unique := &schema.Table{
		Name: UniqueSubjectsTable,
		Columns: []schema.Column{
			{Name: "SubjectCode", Type: schema.TypeCode, Nullable: true},
			{Name: "Hours", Type: schema.TypeInteger, Nullable: true},
		},
	}
	seen := make(map[string]bool)
	add := func(code string, hours int) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		unique.AppendRow(schema.Str(code), schema.Str(strconv.Itoa(hours)))
	}

	for _, t := range years {
		if len(t.Columns) < 3 {
			continue
		}
		firstCol, hoursCol := t.Columns[0].Name, t.Columns[2].Name
		for i := range t.Rows {
			v := t.Get(i, firstCol)
			if !v.Valid {
				continue
			}
			hours, ok := parseHours(t.Get(i, hoursCol))
			if !ok {
				continue
			}
			first := core.SquashSpaces(v.String)
			if strings.Contains(first, "/") {
				add(subjectCode(first), hours)
				continue
			}
			for _, col := range t.Columns {
				if core.SquashSpaces(col.Name) != first {
					continue
				}
				for _, value := range distinctValues(t, col.Name) {
					if strings.Contains(value, "/") {
						add(subjectCode(core.SquashSpaces(value)), hours)
					}
				}
			}
		}
	}
	return unique
}

// subjectCode returns the code of a `CODE / Title` value, at most 9 characters.
func subjectCode(value string) string {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return ""
	}
	return core.Truncate(core.SquashSpaces(parts[0]), 9)
}

func parseHours(v null.String) (int, bool) {
	if !v.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func distinctValues(t *schema.Table, col string) []string {
	var values []string
	seen := make(map[string]bool)
	for i := range t.Rows {
		if v := t.Get(i, col); v.Valid && v.String != "" && !seen[v.String] {
			seen[v.String] = true
			values = append(values, v.String)
		}
	}
	return values
}
