// Package allocation assigns up to three subject sections to every faculty member.
package allocation

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
)

// Tables written by ProcessFacultyFiles.
const (
	FacultyTable     = "SortedTable_SortedTable"
	PreferencesTable = "FacultyPreferences_FacultyPreferences"
	PoolTable        = "allsubjectsduplicate"
)

var subjectColumns = []string{"SUB_1", "SUB_2", "SUB_3"}

type facultyRecord struct {
	Name       string  `mapstructure:"Name"`
	EmployeeID string  `mapstructure:"Employee_ID"`
	Sub1       *string `mapstructure:"SUB_1"`
	Sub2       *string `mapstructure:"SUB_2"`
	Sub3       *string `mapstructure:"SUB_3"`
	Pref1      *string `mapstructure:"SUB_1_PREF"`
	Pref2      *string `mapstructure:"SUB_2_PREF"`
	Pref3      *string `mapstructure:"SUB_3_PREF"`
}

type preferenceRecord struct {
	EmployeeID string                 `mapstructure:"Employee_ID"`
	Other      map[string]interface{} `mapstructure:",remain"`
}

type poolRecord struct {
	Sections string `mapstructure:"sections"`
	Subjects string `mapstructure:"subjects"`
}

type Service struct {
	store  schema.Store
	logger core.Logger
	seed   int64
}

// NewService returns the allocation service; a zero seed draws random choices from the clock.
func NewService(store schema.Store, logger core.Logger, seed int64) *Service {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		panic(err)
	}
	return &Service{store: store, logger: logger, seed: seed}
}

func (svc *Service) rand() *rand.Rand {
	seed := svc.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func fail(rep *ingest.Report, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	rep.Printf("%s", msg)
	return &ingest.ProcessingError{Message: msg, Details: rep.Details()}
}

// ProcessFacultyFiles stores the faculty list and preferences of a department,
// allocates the department's AllSubjects pool and writes the formatted allocation table.
func (svc *Service) ProcessFacultyFiles(ctx context.Context, dept string, list, prefs ingest.File) (ingest.Details, error) {
	var rep ingest.Report
	if err := svc.processFacultyFiles(ctx, dept, list, prefs, &rep); err != nil {
		svc.logger.Warn("faculty files processing failed", map[string]interface{}{"department": dept, "error": err.Error()})
		return rep.Details(), rep.Failed(err)
	}
	return rep.Details(), nil
}

func (svc *Service) processFacultyFiles(ctx context.Context, dept string, list, prefs ingest.File, rep *ingest.Report) error {
	tables, err := svc.store.ListTables(ctx, dept)
	if errors.Cause(err) == schema.ErrSchemaNotFound {
		return fail(rep, "Schema '%s' does not exist.", dept)
	} else if err != nil {
		return errors.Wrapf(err, "listing tables of %s", dept)
	}
	var allSubjects string
	for _, name := range tables {
		if strings.EqualFold(name, ingest.AllSubjectsTable) {
			allSubjects = name
			break
		}
	}
	if allSubjects == "" {
		rep.Printf("Available tables: %s", strings.Join(tables, ", "))
		return fail(rep, "Table '%s' not found in the schema.", ingest.AllSubjectsTable)
	}
	rep.Printf("Using AllSubjects table: '%s'", allSubjects)

	rep.Printf("\nCreating tables from Excel files...")
	facultyTable, err := svc.storeSheet(ctx, rep, dept, list, FacultyTable, "Name", "Employee_ID")
	if err != nil {
		return err
	}
	prefTable, err := svc.storeSheet(ctx, rep, dept, prefs, PreferencesTable, "Employee_ID")
	if err != nil {
		return err
	}

	poolTable, err := svc.store.ReadTable(ctx, dept, allSubjects)
	if err != nil {
		return errors.Wrapf(err, "reading %s", allSubjects)
	}
	var poolRows []poolRecord
	if err := ingest.DecodeRows(poolTable, &poolRows); err != nil {
		return err
	}
	entries := make([]PoolEntry, 0, len(poolRows))
	for _, r := range poolRows {
		if r.Subjects != "" {
			entries = append(entries, PoolEntry{Section: r.Sections, Subject: r.Subjects})
		}
	}
	pool := NewPool(entries)
	rep.Printf("\nCreated %s duplicate table", allSubjects)

	faculty, err := loadFaculty(facultyTable, prefTable)
	if err != nil {
		return err
	}

	x := InitialCount(len(faculty), pool.Len(), 0)
	rep.Printf("\nCalculated initial x value: %d", x)
	professors := CountProfessors(prefTable, rep)
	rep.Printf("Number of professors found: %d", professors)
	x -= professors
	rep.Printf("Modified x value after subtracting professor count: %d", x)

	alloc := NewAllocator(pool, svc.rand(), rep)
	rep.Printf("\nPerforming initial subject allocation...")
	alloc.AllocateInitial(faculty, x)
	rep.Printf("Initial subject allocation completed")

	rep.Printf("\nFilling empty SUB_2 slots after x-th row...")
	alloc.FillSecond(faculty, x)
	reportConflicts(rep, faculty)

	s := Summarize(faculty)
	rep.Printf("\nInterim Status:\n-------------\nTotal Faculty: %d\nSUB_1 Allocated: %d\nSUB_2 Allocated: %d", s.Total, s.Sub1, s.Sub2)

	rep.Printf("\nAllocating SUB_3 for faculty (skipping first %d rows)...", professors)
	alloc.AllocateThird(faculty, professors)
	alloc.Optimize(faculty)
	reportConflicts(rep, faculty)

	s = Summarize(faculty)
	rep.Printf("\nFinal Allocation Summary:\n----------------------\nTotal Faculty: %d\nSUB_1 Allocated: %d\nSUB_2 Allocated: %d\nSUB_3 Allocated: %d", s.Total, s.Sub1, s.Sub2, s.Sub3)

	storeFaculty(facultyTable, faculty)
	remaining := schema.NewTable(PoolTable, "sections", "subjects")
	for _, e := range pool.Entries() {
		remaining.AppendRow(schema.Str(e.Section), schema.Str(e.Subject))
	}
	for _, t := range []*schema.Table{facultyTable, remaining, FormatTable(faculty)} {
		if err := svc.store.ReplaceTable(ctx, dept, t); err != nil {
			return errors.Wrapf(err, "storing %s", t.Name)
		}
	}
	rep.Printf("Formatted table created successfully!")

	if swapped := Swapped(faculty); len(swapped) > 0 {
		rep.Printf("\nNote: %d subjects were swapped during optimization (marked with '+').", len(swapped))
		rep.Printf("\nFaculty with swapped subjects:")
		for _, f := range swapped {
			rep.Printf("  %s (%s): %s", f.Name, f.EmployeeID, f.subject(2))
		}
	}
	rep.Printf("\nAll operations completed successfully!")

	svc.logger.Info("faculty files processed", map[string]interface{}{
		"department": dept, "faculty": s.Total, "sub3": s.Sub3, "remaining": pool.Len(),
	})
	return nil
}

func (svc *Service) storeSheet(ctx context.Context, rep *ingest.Report, dept string, f ingest.File, name string, required ...string) (*schema.Table, error) {
	t, err := ingest.ReadSheet(f, ingest.CleanColumn)
	if err != nil {
		rep.Errorf("Error creating table from Excel: %v", err)
		return nil, &ingest.ProcessingError{Message: err.Error(), Details: rep.Details()}
	}
	if err := ingest.RequireColumns(t, required...); err != nil {
		rep.Errorf("%v", err)
		return nil, &ingest.ProcessingError{Message: err.Error(), Details: rep.Details()}
	}
	t.Name = name
	if name == FacultyTable {
		for _, col := range []string{"SUB_1", "SUB_2", "SUB_1_PREF", "SUB_2_PREF", "SUB_3_PREF", "SUB_3"} {
			t.AddColumn(col, schema.TypeText)
		}
	}
	if err := svc.store.ReplaceTable(ctx, dept, t); err != nil {
		return nil, errors.Wrapf(err, "storing %s", name)
	}
	rep.Printf("Created and populated table '%s'", name)
	return t, nil
}

func loadFaculty(facultyTable, prefTable *schema.Table) ([]*Faculty, error) {
	var records []facultyRecord
	if err := ingest.DecodeRows(facultyTable, &records); err != nil {
		return nil, err
	}
	var prefRecords []preferenceRecord
	if err := ingest.DecodeRows(prefTable, &prefRecords); err != nil {
		return nil, err
	}
	choices := make(map[string][]Choice, len(prefRecords))
	for _, p := range prefRecords {
		if _, ok := choices[p.EmployeeID]; ok {
			continue
		}
		values := make(map[string]string, len(p.Other))
		for col, v := range p.Other {
			if v != nil {
				values[col] = fmt.Sprint(v)
			}
		}
		choices[p.EmployeeID] = ChoicesFrom(values)
	}

	faculty := make([]*Faculty, len(records))
	for i, r := range records {
		f := &Faculty{Name: r.Name, EmployeeID: r.EmployeeID, Choices: choices[r.EmployeeID]}
		for j, v := range []*string{r.Sub1, r.Sub2, r.Sub3} {
			if v != nil {
				f.Subjects[j] = schema.Str(*v)
			}
		}
		for j, v := range []*string{r.Pref1, r.Pref2, r.Pref3} {
			if v != nil {
				f.Prefs[j] = schema.Str(*v)
			}
		}
		faculty[i] = f
	}
	return faculty, nil
}

func storeFaculty(t *schema.Table, faculty []*Faculty) {
	for i, f := range faculty {
		for j, col := range subjectColumns {
			t.Set(i, col, f.Subjects[j])
			t.Set(i, col+"_PREF", f.Prefs[j])
		}
	}
}

// CountProfessors counts full professors in the designation column, `Designation`
// or else the first column whose name contains "design".
func CountProfessors(prefs *schema.Table, rep *ingest.Report) int {
	col := ""
	for _, c := range prefs.Columns {
		if strings.EqualFold(c.Name, "Designation") {
			col = c.Name
			break
		}
	}
	if col == "" {
		for _, c := range prefs.Columns {
			if strings.Contains(strings.ToLower(c.Name), "design") {
				col = c.Name
				break
			}
		}
	}
	if col == "" {
		rep.Printf("Could not find Designation column in faculty preferences table. Assuming 0 professors.")
		return 0
	}

	count := 0
	for i := range prefs.Rows {
		d := strings.ToLower(prefs.Get(i, col).String)
		if strings.Contains(d, "professor") && !strings.Contains(d, "associate") && !strings.Contains(d, "assistant") {
			count++
		}
	}
	return count
}

func reportConflicts(rep *ingest.Report, faculty []*Faculty) {
	rep.Printf("\nChecking for existing conflicts...")
	conflicts := FindConflicts(faculty)
	if len(conflicts) == 0 {
		rep.Printf("No conflicts found.")
		return
	}
	rep.Printf("Found %d conflicts:", len(conflicts))
	for _, c := range conflicts {
		rep.Printf("  Faculty: %s (%s)", c.Faculty, c.EmployeeID)
		rep.Printf("  Conflict between: %s", c.Between)
		rep.Printf("    %s | %s", c.First, c.Second)
	}
}
