// Package timetable generates weekly timetables for class sections, teachers and venues.
package timetable

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/slotwise/slotwise/core"
)

const generationFailed = "Failed to generate timetable after multiple attempts"

var (
	ErrNotFound    = errors.New("timetable not found")
	ErrExists      = errors.New("timetable schema already exists")
	ErrNoTimetable = core.NewNotFoundError("No timetable schema found")
	ErrInvalidName = core.NewBadRequestError("Invalid timetable schema name. Must start with '%s'", Prefix)
)

// Repository stores every generation in its own schema.
type Repository interface {
	// List returns the names of the timetable schemas.
	List(ctx context.Context) ([]string, error)
	// Save fails with ErrExists when the schema name is taken.
	Save(ctx context.Context, name string, tt *Timetable) error
	// Get fails with ErrNotFound when the schema does not exist.
	Get(ctx context.Context, name string) (*Timetable, error)
	Delete(ctx context.Context, name string) error
}

type ValidationSummary struct {
	SubjectHoursValid bool `json:"subject_hours_valid"`
	VenueClashes      bool `json:"venue_clashes"`
}

type GenerateResult struct {
	Status            string            `json:"status"`
	Message           string            `json:"message"`
	ValidationSummary ValidationSummary `json:"validation_summary"`
	SchemaName        string            `json:"schema_name"`
}

type Service struct {
	repo   Repository
	logger core.Logger
	conf   core.TimetableConfig
	now    func() time.Time
}

func NewService(repo Repository, logger core.Logger, conf core.TimetableConfig) *Service {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		panic(err)
	}
	return &Service{repo: repo, logger: logger, conf: conf, now: time.Now}
}

// SetNow replaces the clock that names and stamps generations.
func (svc *Service) SetNow(now func() time.Time) {
	svc.now = now
}

func (svc *Service) rand() *rand.Rand {
	seed := svc.conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Generate builds the timetables of every configured section and saves them in a new schema.
func (svc *Service) Generate(ctx context.Context, files Files, sectionConfig string) (GenerateResult, error) {
	conf, err := ParseSectionConfig(sectionConfig)
	if err != nil {
		return GenerateResult{}, err
	}
	in, err := ParseInput(files, conf)
	if err != nil {
		return GenerateResult{}, err
	}

	gen := NewGenerator(in.Sections, in.Venues, svc.conf.MaxAttempts, svc.rand())
	gen.SetLogf(func(format string, args ...interface{}) {
		svc.logger.Debug("timetable generation", map[string]interface{}{"detail": fmt.Sprintf(format, args...)})
	})
	attempt := gen.Generate()
	if attempt == 0 {
		svc.logger.Warn(generationFailed, map[string]interface{}{"sections": len(in.Sections)})
		return GenerateResult{}, core.NewInternalError(generationFailed)
	}

	ts := svc.now()
	tt := gen.Build(in.EmployeeIDs, ts.UTC())
	name, err := svc.save(ctx, SchemaName(ts), tt)
	if err != nil {
		return GenerateResult{}, err
	}
	svc.logger.Info("timetable generated", map[string]interface{}{
		"schema": name, "attempt": attempt, "classes": len(tt.Classes), "teachers": len(tt.Teachers),
	})

	return GenerateResult{
		Status:  "success",
		Message: "Timetable generated and saved successfully",
		ValidationSummary: ValidationSummary{
			SubjectHoursValid: gen.HoursValid() && gen.TeachersValid(),
			VenueClashes:      len(gen.VenueClashes()) > 0,
		},
		SchemaName: name,
	}, nil
}

// maxNameSuffix keeps suffixed names sorting after the base name: `_9` is the last single digit.
const maxNameSuffix = 9

// save stores tt under base, or under base_2..base_9 when generations share a second.
func (svc *Service) save(ctx context.Context, base string, tt *Timetable) (string, error) {
	name := base
	for n := 2; ; n++ {
		err := svc.repo.Save(ctx, name, tt)
		if err == nil {
			return name, nil
		}
		if errors.Cause(err) != ErrExists {
			return "", errors.Wrapf(err, "saving timetable %s", name)
		}
		if n > maxNameSuffix {
			return "", core.NewConflictError("Timetable schema '%s' already exists", name)
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

// Schemas lists the timetable schemas in name order.
func (svc *Service) Schemas(ctx context.Context) ([]string, error) {
	names, err := svc.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing timetable schemas")
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the most recent generation, arranged for display.
func (svc *Service) Latest(ctx context.Context) (string, *Timetable, error) {
	names, err := svc.Schemas(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(names) == 0 {
		return "", nil, ErrNoTimetable
	}
	name := names[len(names)-1]
	tt, err := svc.Get(ctx, name)
	return name, tt, err
}

// Get returns a generation, arranged for display.
func (svc *Service) Get(ctx context.Context, name string) (*Timetable, error) {
	tt, err := svc.Raw(ctx, name)
	if err != nil {
		return nil, err
	}
	tt.Sort()
	tt.Arrange()
	return tt, nil
}

// Raw returns a generation as stored.
func (svc *Service) Raw(ctx context.Context, name string) (*Timetable, error) {
	if !IsTimetableSchema(name) {
		return nil, ErrInvalidName
	}
	tt, err := svc.repo.Get(ctx, name)
	if errors.Cause(err) == ErrNotFound {
		return nil, core.NewNotFoundError("Timetable schema '%s' not found", name)
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading timetable %s", name)
	}
	return tt, nil
}

func (svc *Service) Delete(ctx context.Context, name string) error {
	if !IsTimetableSchema(name) {
		return ErrInvalidName
	}
	err := svc.repo.Delete(ctx, name)
	if errors.Cause(err) == ErrNotFound {
		return core.NewNotFoundError("Timetable schema '%s' not found", name)
	} else if err != nil {
		return errors.Wrapf(err, "deleting timetable %s", name)
	}
	svc.logger.Info("timetable deleted", map[string]interface{}{"schema": name})
	return nil
}
