package timetable

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Subject types; the type is the last character of the subject code.
const (
	TypeTheory  = "T"
	TypeLab     = "P"
	TypeProject = "J"

	// CDCCode is the career development course every listed section gets once a week.
	CDCCode = "CDC"
)

type Subject struct {
	Code    string
	Type    string
	Hours   int
	Teacher string
}

// NeedsLab reports whether the subject is taught in a venue as a double period.
func (s Subject) NeedsLab() bool {
	return s.Type == TypeLab || s.Type == TypeProject
}

type Section struct {
	Year int
	Name string
}

func (s Section) String() string {
	return fmt.Sprintf("%d-%s", s.Year, s.Name)
}

type Venue struct {
	No   string
	Name string
}

func (v Venue) Label() string {
	return v.No + " - " + v.Name
}

// SectionSubjects is the weekly load of one class section.
type SectionSubjects struct {
	Section  Section
	Subjects []Subject
}

// teaching slot positions
var (
	morning        = []int{0, 1, 2, 3}
	earlyAfternoon = []int{4, 5}
	lateAfternoon  = []int{6, 7}
	morningPairs   = [][2]int{{0, 1}, {2, 3}}
	afternoonPairs = [][2]int{{4, 5}, {6, 7}}
)

// week holds a class's booked cells by day and teaching slot; nil is FREE.
type week [5][8]*Cell

type booking map[string]*[5][8]bool

func (b booking) get(key string) *[5][8]bool {
	if b[key] == nil {
		b[key] = new([5][8]bool)
	}
	return b[key]
}

func (b booking) booked(key string, day, slot int) bool {
	if w := b[key]; w != nil {
		return w[day][slot]
	}
	return false
}

// Generator places every section's subjects into a weekly grid shared by all teachers and venues.
// It is not safe for concurrent use.
type Generator struct {
	sections    []SectionSubjects
	venues      []Venue
	maxAttempts int
	rnd         *rand.Rand
	log         func(format string, args ...interface{})

	weeks    map[Section]*week
	teachers booking
	rooms    booking
}

func NewGenerator(sections []SectionSubjects, venues []Venue, maxAttempts int, rnd *rand.Rand) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Generator{
		sections:    sections,
		venues:      venues,
		maxAttempts: maxAttempts,
		rnd:         rnd,
		log:         func(string, ...interface{}) {},
	}
}

// SetLogf sets the printf-style sink for scheduling failures.
func (g *Generator) SetLogf(logf func(format string, args ...interface{})) {
	g.log = logf
}

func (g *Generator) reset() {
	g.weeks = make(map[Section]*week, len(g.sections))
	for _, s := range g.sections {
		g.weeks[s.Section] = new(week)
	}
	g.teachers = make(booking)
	g.rooms = make(booking)
}

// Generate tries up to maxAttempts times to place every subject. It reports the attempt
// that succeeded, or 0 when none did.
func (g *Generator) Generate() int {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		g.reset()
		if g.attempt() && g.HoursValid() && g.TeachersValid() && len(g.VenueClashes()) == 0 {
			return attempt
		}
		g.log("attempt %d of %d failed", attempt, g.maxAttempts)
	}
	return 0
}

func (g *Generator) attempt() bool {
	// labs first: they need a venue and a double period
	for _, s := range g.sections {
		labs := filterSubjects(s.Subjects, true)
		g.rnd.Shuffle(len(labs), func(i, j int) { labs[i], labs[j] = labs[j], labs[i] })
		for _, subj := range labs {
			if !g.scheduleLab(s.Section, subj) {
				g.log("failed to schedule %s for %s", subj.Code, s.Section)
				return false
			}
		}
	}
	for _, s := range g.sections {
		theory := filterSubjects(s.Subjects, false)
		g.rnd.Shuffle(len(theory), func(i, j int) { theory[i], theory[j] = theory[j], theory[i] })
		for _, subj := range theory {
			if !g.scheduleTheory(s.Section, subj) {
				g.log("failed to schedule %s for %s", subj.Code, s.Section)
				return false
			}
		}
	}
	return true
}

func filterSubjects(subjects []Subject, labs bool) []Subject {
	var out []Subject
	for _, s := range subjects {
		if s.NeedsLab() == labs {
			out = append(out, s)
		}
	}
	return out
}

// fits checks the constraints shared by every placement: the slot is free, the code is not
// taught to the section that day, and the teacher is free in the slot and both neighbours.
func (g *Generator) fits(sec Section, subj Subject, day, slot int) bool {
	w := g.weeks[sec]
	if w[day][slot] != nil {
		return false
	}
	for _, c := range w[day] {
		if c != nil && c.Code == subj.Code {
			return false
		}
	}
	if g.teachers.booked(subj.Teacher, day, slot) {
		return false
	}
	if slot > 0 && g.teachers.booked(subj.Teacher, day, slot-1) {
		return false
	}
	if slot < len(TeachingSlots)-1 && g.teachers.booked(subj.Teacher, day, slot+1) {
		return false
	}
	return true
}

// pairFits checks the teacher is free around a double period.
func (g *Generator) pairFits(teacher string, day int, pair [2]int) bool {
	if pair[0] > 0 && g.teachers.booked(teacher, day, pair[0]-1) {
		return false
	}
	if pair[1] < len(TeachingSlots)-1 && g.teachers.booked(teacher, day, pair[1]+1) {
		return false
	}
	return true
}

func (g *Generator) place(sec Section, subj Subject, day, slot int, venue string) {
	g.weeks[sec][day][slot] = &Cell{Code: subj.Code, Teacher: subj.Teacher, Type: subj.Type, Venue: venue}
	g.teachers.get(subj.Teacher)[day][slot] = true
}

func (g *Generator) freeVenue(day int, pair [2]int) (Venue, bool) {
	for _, v := range g.venues {
		if !g.rooms.booked(v.No, day, pair[0]) && !g.rooms.booked(v.No, day, pair[1]) {
			return v, true
		}
	}
	return Venue{}, false
}

func (g *Generator) shuffledDays() []int {
	days := []int{0, 1, 2, 3, 4}
	g.shuffle(days)
	return days
}

func (g *Generator) shuffle(days []int) {
	g.rnd.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
}

func (g *Generator) candidates(sec Section, subj Subject, day int, slots []int) []int {
	var out []int
	for _, slot := range slots {
		if g.fits(sec, subj, day, slot) {
			out = append(out, slot)
		}
	}
	return out
}

// placeOne books one hour of subj on day in a random slot among slots that still fits.
func (g *Generator) placeOne(sec Section, subj Subject, day int, slots []int) bool {
	free := g.candidates(sec, subj, day, slots)
	if len(free) == 0 {
		return false
	}
	g.place(sec, subj, day, free[g.rnd.Intn(len(free))], "")
	return true
}

// scheduleLab books a double period with a venue (mornings first, late afternoon last),
// then spreads the remaining hours one per remaining day without a venue.
func (g *Generator) scheduleLab(sec Section, subj Subject) bool {
	if !subj.NeedsLab() {
		return g.scheduleTheory(sec, subj)
	}

	days := g.shuffledDays()
	placed := false
	for i, pairs := range [][][2]int{morningPairs, afternoonPairs[:1], afternoonPairs[1:]} {
		if i > 0 {
			g.shuffle(days)
		}
		if day, ok := g.placeLabPair(sec, subj, days, pairs); ok {
			days = removeDay(days, day)
			placed = true
			break
		}
	}
	if !placed {
		return false
	}

	remaining := subj.Hours - 2
	for _, day := range days {
		if remaining <= 0 {
			break
		}
		if g.placeOne(sec, subj, day, morning) {
			remaining--
		}
	}
	if remaining > 0 {
		g.shuffle(days)
		for _, day := range days {
			if remaining <= 0 {
				break
			}
			if g.placeOne(sec, subj, day, earlyAfternoon) || g.placeOne(sec, subj, day, lateAfternoon) {
				remaining--
			}
		}
	}
	return remaining == 0
}

func (g *Generator) placeLabPair(sec Section, subj Subject, days []int, pairs [][2]int) (int, bool) {
	for _, day := range days {
		for _, pair := range pairs {
			if !g.fits(sec, subj, day, pair[0]) || !g.fits(sec, subj, day, pair[1]) || !g.pairFits(subj.Teacher, day, pair) {
				continue
			}
			venue, ok := g.freeVenue(day, pair)
			if !ok {
				continue
			}
			for _, slot := range pair {
				g.place(sec, subj, day, slot, venue.Label())
				g.rooms.get(venue.No)[day][slot] = true
			}
			return day, true
		}
	}
	return 0, false
}

func removeDay(days []int, day int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d != day {
			out = append(out, d)
		}
	}
	return out
}

// scheduleTheory takes one morning slot per day, then an early or late afternoon slot on shuffled days.
// A CDC subject instead takes a single double period.
func (g *Generator) scheduleTheory(sec Section, subj Subject) bool {
	if subj.Code == CDCCode {
		return g.scheduleCDC(sec, subj)
	}

	hours := subj.Hours
	days := []int{0, 1, 2, 3, 4}
	for _, day := range days {
		if hours <= 0 {
			break
		}
		if g.placeOne(sec, subj, day, morning) {
			hours--
		}
	}
	if hours > 0 {
		g.shuffle(days)
		for _, day := range days {
			if hours <= 0 {
				break
			}
			if g.placeOne(sec, subj, day, earlyAfternoon) || g.placeOne(sec, subj, day, lateAfternoon) {
				hours--
			}
		}
	}
	return hours == 0
}

func (g *Generator) scheduleCDC(sec Section, subj Subject) bool {
	days := g.shuffledDays()
	for _, pairs := range [][][2]int{morningPairs, afternoonPairs} {
		for _, day := range days {
			for _, pair := range pairs {
				if g.fits(sec, subj, day, pair[0]) && g.fits(sec, subj, day, pair[1]) {
					g.place(sec, subj, day, pair[0], "")
					g.place(sec, subj, day, pair[1], "")
					return true
				}
			}
		}
	}
	return false
}

// HoursValid reports whether every code got the hours of its subjects.
func (g *Generator) HoursValid() bool {
	for _, s := range g.sections {
		want := make(map[string]int)
		for _, subj := range s.Subjects {
			want[subj.Code] += subj.Hours
		}
		got := make(map[string]int)
		w := g.weeks[s.Section]
		for day := range w {
			for _, c := range w[day] {
				if c != nil {
					got[c.Code]++
				}
			}
		}
		for code, hours := range want {
			if got[code] != hours {
				return false
			}
		}
	}
	return true
}

// TeachersValid reports whether back-to-back slots of a teacher always belong to the same subject.
func (g *Generator) TeachersValid() bool {
	codes := make(map[string]*[5][8]string)
	for _, w := range g.weeks {
		for day := range w {
			for slot, c := range w[day] {
				if c == nil {
					continue
				}
				if codes[c.Teacher] == nil {
					codes[c.Teacher] = new([5][8]string)
				}
				codes[c.Teacher][day][slot] = c.Code
			}
		}
	}
	for _, t := range codes {
		for day := range t {
			for slot := 0; slot < len(TeachingSlots)-1; slot++ {
				cur, next := t[day][slot], t[day][slot+1]
				if cur != "" && next != "" && cur != next {
					return false
				}
			}
		}
	}
	return true
}

// Clash is a venue booked by more than one class in a slot.
type Clash struct {
	Venue   string   `json:"venue"`
	Day     string   `json:"day"`
	Slot    string   `json:"slot"`
	Classes []string `json:"classes"`
}

func (g *Generator) VenueClashes() []Clash {
	type key struct {
		venue     string
		day, slot int
	}
	usage := make(map[key][]string)
	var keys []key
	for _, s := range g.sections {
		w := g.weeks[s.Section]
		for day := range w {
			for slot, c := range w[day] {
				if c == nil || c.Venue == "" {
					continue
				}
				k := key{venueNo(c.Venue), day, slot}
				if _, ok := usage[k]; !ok {
					keys = append(keys, k)
				}
				usage[k] = append(usage[k], fmt.Sprintf("Year %d Section %s (%s)", s.Section.Year, s.Section.Name, c.Code))
			}
		}
	}

	var clashes []Clash
	for _, k := range keys {
		if len(usage[k]) > 1 {
			clashes = append(clashes, Clash{Venue: k.venue, Day: Days[k.day], Slot: TeachingSlots[k.slot], Classes: usage[k]})
		}
	}
	return clashes
}

func venueNo(label string) string {
	return strings.SplitN(label, " - ", 2)[0]
}

// teacherNames lists every teacher with a booking, sorted.
func (g *Generator) teacherNames() []string {
	names := make([]string, 0, len(g.teachers))
	for name := range g.teachers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
