package timetable

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/ingest"
)

// SectionConfig lists the section letters of every year.
type SectionConfig map[int][]string

// DefaultSectionConfig gives years 1 to 3 sections A to Z.
func DefaultSectionConfig() SectionConfig {
	letters := make([]string, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	return SectionConfig{1: letters, 2: letters, 3: letters}
}

// ParseSectionConfig decodes `{"1": ["A", "B"], ...}`; an empty string gives the default.
func ParseSectionConfig(raw string) (SectionConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultSectionConfig(), nil
	}
	var byKey map[string][]string
	if err := json.Unmarshal([]byte(raw), &byKey); err != nil {
		return nil, core.NewBadRequestError("Invalid section configuration: %v", err)
	}
	conf := make(SectionConfig, len(byKey))
	for k, sections := range byKey {
		year, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, core.NewBadRequestError("Invalid section configuration: year %q is not a number", k)
		}
		conf[year] = sections
	}
	return conf, nil
}

func (c SectionConfig) years() []int {
	years := make([]int, 0, len(c))
	for y := range c {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Files are the CSV uploads of a generation request.
type Files struct {
	Faculty  ingest.File
	Subjects ingest.File
	Venues   ingest.File
	CDC      ingest.File
}

type facultyRow struct {
	Name       string `mapstructure:"Name"`
	EmployeeID string `mapstructure:"Employee_ID"`
	Sub1       string `mapstructure:"SUB_1"`
	Sub1Year   string `mapstructure:"SUB_1_Year"`
	Sub1Class  string `mapstructure:"SUB_1_Class"`
	Sub2       string `mapstructure:"SUB_2"`
	Sub2Year   string `mapstructure:"SUB_2_Year"`
	Sub2Class  string `mapstructure:"SUB_2_Class"`
	Sub3       string `mapstructure:"SUB_3"`
	Sub3Year   string `mapstructure:"SUB_3_Year"`
	Sub3Class  string `mapstructure:"SUB_3_Class"`
}

func (r facultyRow) subjects() [3][3]string {
	return [3][3]string{
		{r.Sub1, r.Sub1Year, r.Sub1Class},
		{r.Sub2, r.Sub2Year, r.Sub2Class},
		{r.Sub3, r.Sub3Year, r.Sub3Class},
	}
}

type subjectRow struct {
	Code  string `mapstructure:"SubjectCode"`
	Hours string `mapstructure:"Hours"`
}

type venueRow struct {
	No   string `mapstructure:"Venue No"`
	Name string `mapstructure:"Venue Name"`
}

type cdcRow struct {
	Year    string `mapstructure:"SUB_Year"`
	Classes string `mapstructure:"SUB_Classes"`
	Name    string `mapstructure:"Name"`
}

// Input is everything a generation needs.
type Input struct {
	Sections    []SectionSubjects
	Venues      []Venue
	EmployeeIDs map[string]string
}

func readCSV(f ingest.File, what string, out interface{}, required ...string) error {
	t, err := ingest.ReadCSV(f, strings.TrimSpace)
	if err != nil {
		return err
	}
	t.Name = what
	if err := ingest.RequireColumns(t, required...); err != nil {
		return err
	}
	if err := ingest.DecodeRows(t, out); err != nil {
		return core.NewBadRequestError("Error processing %s file: %v", what, err)
	}
	return nil
}

func parseNumber(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// ParseInput reads the uploads into the weekly load of every configured section.
// Sections without subjects are left out.
func ParseInput(files Files, conf SectionConfig) (Input, error) {
	var (
		faculty  []facultyRow
		subjects []subjectRow
		venues   []venueRow
		cdc      []cdcRow
	)
	if err := readCSV(files.Faculty, "faculty", &faculty, "Name"); err != nil {
		return Input{}, err
	}
	if err := readCSV(files.Subjects, "subjects", &subjects, "SubjectCode", "Hours"); err != nil {
		return Input{}, err
	}
	if err := readCSV(files.Venues, "venues", &venues, "Venue No", "Venue Name"); err != nil {
		return Input{}, err
	}
	if err := readCSV(files.CDC, "cdc", &cdc, "SUB_Year", "SUB_Classes", "Name"); err != nil {
		return Input{}, err
	}

	in := Input{EmployeeIDs: make(map[string]string)}

	// subject code -> year, and class -> subject code -> teacher
	years := make(map[string]int)
	allocations := make(map[string]map[string]string)
	for _, r := range faculty {
		if _, ok := in.EmployeeIDs[r.Name]; !ok && r.EmployeeID != "" {
			in.EmployeeIDs[r.Name] = r.EmployeeID
		}
		for _, sub := range r.subjects() {
			subject, year, class := sub[0], sub[1], sub[2]
			if subject == "" {
				continue
			}
			code := strings.TrimSpace(strings.Split(subject, "/")[0])
			if y, err := parseNumber(year); err == nil {
				years[code] = y
			}
			if allocations[class] == nil {
				allocations[class] = make(map[string]string)
			}
			allocations[class][code] = r.Name
		}
	}

	type yearSubject struct {
		Subject
		year int
	}
	var catalogue []yearSubject
	for _, r := range subjects {
		code := strings.TrimSpace(r.Code)
		year, ok := years[code]
		if code == "" || !ok {
			continue
		}
		hours, err := parseNumber(r.Hours)
		if err != nil {
			return Input{}, core.NewBadRequestError("Error processing subject list file: invalid hours %q for %s", r.Hours, code)
		}
		catalogue = append(catalogue, yearSubject{
			Subject: Subject{Code: code, Type: code[len(code)-1:], Hours: hours},
			year:    year,
		})
	}

	seen := make(map[string]bool)
	for _, r := range venues {
		if r.No == "" || seen[r.No] {
			continue
		}
		seen[r.No] = true
		in.Venues = append(in.Venues, Venue{No: r.No, Name: r.Name})
	}

	for _, year := range conf.years() {
		for _, name := range conf[year] {
			key := fmt.Sprintf("CSE-%s", name)
			var list []Subject
			for _, s := range catalogue {
				teacher, ok := allocations[key][s.Code]
				if s.year != year || !ok {
					continue
				}
				subj := s.Subject
				subj.Teacher = teacher
				list = append(list, subj)
			}
			for _, r := range cdc {
				if y, err := parseNumber(r.Year); err != nil || y != year || strings.TrimSpace(r.Classes) != key {
					continue
				}
				list = append(list, Subject{Code: CDCCode, Type: TypeTheory, Hours: 2, Teacher: r.Name})
			}
			if len(list) > 0 {
				in.Sections = append(in.Sections, SectionSubjects{Section: Section{Year: year, Name: name}, Subjects: list})
			}
		}
	}
	return in, nil
}
