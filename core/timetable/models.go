package timetable

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/slotwise/slotwise/core/schema"
)

// Grid labels.
const (
	Break = "BREAK"
	Lunch = "LUNCH"
	Free  = "FREE"
)

// Prefix marks the schemas holding a generated timetable.
const Prefix = schema.TimetablePrefix

var (
	Days  = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	Slots = []string{
		"8:00-8:50", "8:50-9:40",
		Break,
		"9:50-10:40", "10:40-11:30",
		Lunch,
		"12:20-1:10", "1:10-2:00", "2:00-2:50", "2:50-3:40",
	}
	// TeachingSlots are the slots subjects are placed in; adjacency is by position in this list.
	TeachingSlots = []string{
		"8:00-8:50", "8:50-9:40", "9:50-10:40", "10:40-11:30",
		"12:20-1:10", "1:10-2:00", "2:00-2:50", "2:50-3:40",
	}
)

func isLabel(slot string) bool {
	return slot == Break || slot == Lunch
}

// Cell is one booked slot. Class grids fill code, teacher, type and venue; teacher grids
// fill year, section, code, type and venue; venue grids year, section, code and teacher.
type Cell struct {
	Year    int    `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
	Code    string `json:"code"`
	Teacher string `json:"teacher,omitempty"`
	Type    string `json:"type,omitempty"`
	Venue   string `json:"venue,omitempty"`
}

// Entry is a grid value: a booked cell, a label (FREE, BREAK, LUNCH) or nothing (null).
type Entry struct {
	Cell  *Cell
	Label string
}

func (e Entry) IsZero() bool {
	return e.Cell == nil && e.Label == ""
}

func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Cell != nil:
		return json.Marshal(e.Cell)
	case e.Label != "":
		return json.Marshal(e.Label)
	}
	return []byte("null"), nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	*e = Entry{}
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &e.Label)
	}
	e.Cell = new(Cell)
	return json.Unmarshal(data, e.Cell)
}

// Grid maps day -> slot -> entry and marshals in week order.
type Grid map[string]map[string]Entry

func (g Grid) set(day, slot string, e Entry) {
	if g[day] == nil {
		g[day] = make(map[string]Entry)
	}
	g[day][slot] = e
}

func (g Grid) MarshalJSON() ([]byte, error) {
	days := make([]string, 0, len(g))
	for day := range g {
		days = append(days, day)
	}
	return marshalOrdered(ordered(days, Days), func(day string) (interface{}, error) {
		slots := make([]string, 0, len(g[day]))
		for slot := range g[day] {
			slots = append(slots, slot)
		}
		raw, err := marshalOrdered(ordered(slots, Slots), func(slot string) (interface{}, error) {
			return g[day][slot], nil
		})
		return json.RawMessage(raw), err
	})
}

// Arrange returns the full week: every day and slot, BREAK and LUNCH filled in,
// slots missing from g left empty.
func Arrange(g Grid) Grid {
	full := make(Grid, len(Days))
	for _, day := range Days {
		full[day] = make(map[string]Entry, len(Slots))
		for _, slot := range Slots {
			if isLabel(slot) {
				full[day][slot] = Entry{Label: slot}
				continue
			}
			full[day][slot] = g[day][slot]
		}
	}
	return full
}

// FreeHours lists the free teaching slots per day.
type FreeHours map[string][]string

func (f FreeHours) MarshalJSON() ([]byte, error) {
	days := make([]string, 0, len(f))
	for day := range f {
		days = append(days, day)
	}
	return marshalOrdered(ordered(days, Days), func(day string) (interface{}, error) {
		return f[day], nil
	})
}

// ordered sorts keys by their position in order; unknown keys follow alphabetically.
func ordered(keys, order []string) []string {
	pos := make(map[string]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, iok := pos[keys[i]]
		pj, jok := pos[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}

func marshalOrdered(keys []string, value func(string) (interface{}, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		v, err := value(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type ClassTimetable struct {
	Year        int       `json:"year" db:"year"`
	Section     string    `json:"section" db:"section"`
	Timetable   Grid      `json:"timetable" db:"timetable_data"`
	FreeHours   FreeHours `json:"free_hours" db:"free_hours"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

type TeacherTimetable struct {
	EmployeeID  *string   `json:"employee_id" db:"employee_id"`
	TeacherName string    `json:"teacher_name" db:"teacher_name"`
	Timetable   Grid      `json:"timetable" db:"timetable_data"`
	FreeHours   FreeHours `json:"free_hours" db:"free_hours"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

type VenueTimetable struct {
	VenueID     string    `json:"venue_id" db:"venue_id"`
	VenueName   string    `json:"venue_name" db:"venue_name"`
	Timetable   Grid      `json:"timetable" db:"timetable_data"`
	FreeHours   FreeHours `json:"free_hours" db:"free_hours"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// Timetable is one generation: every class, teacher and venue week.
type Timetable struct {
	Classes  []ClassTimetable   `json:"classes"`
	Teachers []TeacherTimetable `json:"teachers"`
	Venues   []VenueTimetable   `json:"venues"`
}

// Arrange fills every grid to the full week.
func (t *Timetable) Arrange() {
	for i := range t.Classes {
		t.Classes[i].Timetable = Arrange(t.Classes[i].Timetable)
	}
	for i := range t.Teachers {
		t.Teachers[i].Timetable = Arrange(t.Teachers[i].Timetable)
	}
	for i := range t.Venues {
		t.Venues[i].Timetable = Arrange(t.Venues[i].Timetable)
	}
}

// Sort orders classes by year and section, teachers and venues by name.
func (t *Timetable) Sort() {
	sort.SliceStable(t.Classes, func(i, j int) bool {
		a, b := t.Classes[i], t.Classes[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Section < b.Section
	})
	sort.SliceStable(t.Teachers, func(i, j int) bool {
		return t.Teachers[i].TeacherName < t.Teachers[j].TeacherName
	})
	sort.SliceStable(t.Venues, func(i, j int) bool {
		return t.Venues[i].VenueName < t.Venues[j].VenueName
	})
}

// SchemaName names the schema of a generation started at ts.
func SchemaName(ts time.Time) string {
	return Prefix + ts.Format("20060102_150405")
}

func IsTimetableSchema(name string) bool {
	return strings.HasPrefix(name, Prefix)
}
