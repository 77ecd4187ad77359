package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core/timetable"
)

var timetableTables = []string{
	`CREATE TABLE %s.class_timetables (
		id serial PRIMARY KEY,
		year integer NOT NULL,
		section varchar(10) NOT NULL,
		timetable_data jsonb NOT NULL,
		free_hours jsonb NOT NULL,
		generated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE %s.teacher_timetables (
		id serial PRIMARY KEY,
		employee_id varchar(50),
		teacher_name varchar(255) NOT NULL,
		timetable_data jsonb NOT NULL,
		free_hours jsonb NOT NULL,
		generated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE %s.venue_timetables (
		id serial PRIMARY KEY,
		venue_id varchar(50) NOT NULL,
		venue_name varchar(255) NOT NULL,
		timetable_data jsonb NOT NULL,
		free_hours jsonb NOT NULL,
		generated_at timestamptz NOT NULL
	)`,
}

const duplicateSchema pq.ErrorCode = "42P06"

// jsonb columns travel as raw bytes.
type gridColumns struct {
	Data        []byte    `db:"timetable_data"`
	Free        []byte    `db:"free_hours"`
	GeneratedAt time.Time `db:"generated_at"`
}

func newGridColumns(g timetable.Grid, f timetable.FreeHours, at time.Time) (gridColumns, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return gridColumns{}, errors.Wrap(err, "encoding timetable")
	}
	free, err := json.Marshal(f)
	if err != nil {
		return gridColumns{}, errors.Wrap(err, "encoding free hours")
	}
	return gridColumns{Data: data, Free: free, GeneratedAt: at}, nil
}

func (c gridColumns) decode() (timetable.Grid, timetable.FreeHours, error) {
	var (
		g timetable.Grid
		f timetable.FreeHours
	)
	if err := json.Unmarshal(c.Data, &g); err != nil {
		return nil, nil, errors.Wrap(err, "decoding timetable")
	}
	if err := json.Unmarshal(c.Free, &f); err != nil {
		return nil, nil, errors.Wrap(err, "decoding free hours")
	}
	return g, f, nil
}

type classRow struct {
	Year    int    `db:"year"`
	Section string `db:"section"`
	gridColumns
}

type teacherRow struct {
	EmployeeID  *string `db:"employee_id"`
	TeacherName string  `db:"teacher_name"`
	gridColumns
}

type venueRow struct {
	VenueID   string `db:"venue_id"`
	VenueName string `db:"venue_name"`
	gridColumns
}

type timetableRepository struct {
	db *sqlx.DB
}

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(db *sqlx.DB) *timetableRepository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := repo.db.SelectContext(ctx, &names,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'timetable\_%' ORDER BY schema_name`)
	return names, errors.Wrap(err, "listing timetable schemas")
}

func (repo *timetableRepository) Save(ctx context.Context, name string, tt *timetable.Timetable) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := saveTimetable(ctx, tx, name, tt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing timetable")
}

func saveTimetable(ctx context.Context, tx *sqlx.Tx, name string, tt *timetable.Timetable) error {
	if _, err := tx.ExecContext(ctx, "CREATE SCHEMA "+quote(name)); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == duplicateSchema {
			return timetable.ErrExists
		}
		return errors.Wrapf(err, "creating schema %s", name)
	}
	for _, ddl := range timetableTables {
		if _, err := tx.ExecContext(ctx, sprintfIdent(ddl, name)); err != nil {
			return errors.Wrap(err, "creating timetable tables")
		}
	}

	for _, c := range tt.Classes {
		cols, err := newGridColumns(c.Timetable, c.FreeHours, c.GeneratedAt)
		if err != nil {
			return err
		}
		q := sprintfIdent(`INSERT INTO %s.class_timetables (year, section, timetable_data, free_hours, generated_at)
			VALUES (:year, :section, :timetable_data, :free_hours, :generated_at)`, name)
		if _, err := tx.NamedExecContext(ctx, q, classRow{Year: c.Year, Section: c.Section, gridColumns: cols}); err != nil {
			return errors.Wrapf(err, "saving class %d-%s", c.Year, c.Section)
		}
	}
	for _, t := range tt.Teachers {
		cols, err := newGridColumns(t.Timetable, t.FreeHours, t.GeneratedAt)
		if err != nil {
			return err
		}
		q := sprintfIdent(`INSERT INTO %s.teacher_timetables (employee_id, teacher_name, timetable_data, free_hours, generated_at)
			VALUES (:employee_id, :teacher_name, :timetable_data, :free_hours, :generated_at)`, name)
		if _, err := tx.NamedExecContext(ctx, q, teacherRow{EmployeeID: t.EmployeeID, TeacherName: t.TeacherName, gridColumns: cols}); err != nil {
			return errors.Wrapf(err, "saving teacher %s", t.TeacherName)
		}
	}
	for _, v := range tt.Venues {
		cols, err := newGridColumns(v.Timetable, v.FreeHours, v.GeneratedAt)
		if err != nil {
			return err
		}
		q := sprintfIdent(`INSERT INTO %s.venue_timetables (venue_id, venue_name, timetable_data, free_hours, generated_at)
			VALUES (:venue_id, :venue_name, :timetable_data, :free_hours, :generated_at)`, name)
		if _, err := tx.NamedExecContext(ctx, q, venueRow{VenueID: v.VenueID, VenueName: v.VenueName, gridColumns: cols}); err != nil {
			return errors.Wrapf(err, "saving venue %s", v.VenueID)
		}
	}
	return nil
}

func (repo *timetableRepository) Get(ctx context.Context, name string) (*timetable.Timetable, error) {
	found, err := schemaExists(ctx, repo.db, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, timetable.ErrNotFound
	}

	var (
		tt       = new(timetable.Timetable)
		classes  []classRow
		teachers []teacherRow
		venues   []venueRow
	)
	if err := repo.db.SelectContext(ctx, &classes, sprintfIdent(
		"SELECT year, section, timetable_data, free_hours, generated_at FROM %s.class_timetables ORDER BY id", name)); err != nil {
		return nil, errors.Wrap(err, "reading class timetables")
	}
	if err := repo.db.SelectContext(ctx, &teachers, sprintfIdent(
		"SELECT employee_id, teacher_name, timetable_data, free_hours, generated_at FROM %s.teacher_timetables ORDER BY id", name)); err != nil {
		return nil, errors.Wrap(err, "reading teacher timetables")
	}
	if err := repo.db.SelectContext(ctx, &venues, sprintfIdent(
		"SELECT venue_id, venue_name, timetable_data, free_hours, generated_at FROM %s.venue_timetables ORDER BY id", name)); err != nil {
		return nil, errors.Wrap(err, "reading venue timetables")
	}

	for _, r := range classes {
		g, f, err := r.decode()
		if err != nil {
			return nil, err
		}
		tt.Classes = append(tt.Classes, timetable.ClassTimetable{
			Year: r.Year, Section: r.Section, Timetable: g, FreeHours: f, GeneratedAt: r.GeneratedAt,
		})
	}
	for _, r := range teachers {
		g, f, err := r.decode()
		if err != nil {
			return nil, err
		}
		tt.Teachers = append(tt.Teachers, timetable.TeacherTimetable{
			EmployeeID: r.EmployeeID, TeacherName: r.TeacherName, Timetable: g, FreeHours: f, GeneratedAt: r.GeneratedAt,
		})
	}
	for _, r := range venues {
		g, f, err := r.decode()
		if err != nil {
			return nil, err
		}
		tt.Venues = append(tt.Venues, timetable.VenueTimetable{
			VenueID: r.VenueID, VenueName: r.VenueName, Timetable: g, FreeHours: f, GeneratedAt: r.GeneratedAt,
		})
	}
	return tt, nil
}

func (repo *timetableRepository) Delete(ctx context.Context, name string) error {
	found, err := schemaExists(ctx, repo.db, name)
	if err != nil {
		return err
	}
	if !found {
		return timetable.ErrNotFound
	}
	_, err = repo.db.ExecContext(ctx, "DROP SCHEMA "+quote(name)+" CASCADE")
	return errors.Wrapf(err, "dropping %s", name)
}

func sprintfIdent(format, schemaName string) string {
	return fmt.Sprintf(format, quote(schemaName))
}
