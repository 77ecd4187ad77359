package allocation

import (
	"math/rand"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/slotwise/slotwise/core"
)

// Preference labels written to the SUB_n_PREF columns by the fallback passes.
const (
	PrefRandom          = "Random"
	PrefOptimizedDirect = "Optimized-Direct"
	PrefOptimizedSwap   = "Optimized-Swap"

	// SwapMark suffixes subjects exchanged by the optimisation pass.
	SwapMark = "+"
)

// prefOrder alternates first and second choice lists: 1_1, 2_1, 1_2, 2_2...
var prefOrder = []struct{ column, label string }{
	{"1_1", "1.1"}, {"2_1", "2.1"},
	{"1_2", "1.2"}, {"2_2", "2.2"},
	{"1_3", "1.3"}, {"2_3", "2.3"},
	{"1_4", "1.4"}, {"2_4", "2.4"},
	{"1_5", "1.5"},
}

type Choice struct {
	Label   string
	Subject string
}

// Faculty is one row of the faculty list with its allocation so far.
type Faculty struct {
	Name       string
	EmployeeID string
	Subjects   [3]null.String // SUB_1..SUB_3
	Prefs      [3]null.String // SUB_1_PREF..SUB_3_PREF
	Choices    []Choice
}

func (f *Faculty) subject(i int) string {
	return f.Subjects[i].String
}

func (f *Faculty) assign(i int, subject, pref string) {
	f.Subjects[i] = null.StringFrom(subject)
	f.Prefs[i] = null.StringFrom(pref)
}

// ChoicesFrom orders a preference row, skipping blank and `nan` cells.
func ChoicesFrom(prefs map[string]string) []Choice {
	var choices []Choice
	for _, p := range prefOrder {
		v := prefs[p.column]
		if v == "" || strings.ToLower(v) == "nan" {
			continue
		}
		choices = append(choices, Choice{Label: p.label, Subject: v})
	}
	return choices
}

// PoolEntry is an AllSubjects row still waiting for a teacher.
type PoolEntry struct {
	Section string
	Subject string
}

// Pool keeps the unallocated subjects in AllSubjects order.
type Pool struct {
	entries []PoolEntry
}

func NewPool(entries []PoolEntry) *Pool {
	return &Pool{entries: append([]PoolEntry{}, entries...)}
}

func (p *Pool) Len() int { return len(p.entries) }

func (p *Pool) Entries() []PoolEntry {
	return append([]PoolEntry{}, p.entries...)
}

func codePrefix(s string) string {
	return core.Truncate(s, 9)
}

// Matches lists the subjects sharing the choice's 9 character code prefix, case-insensitively.
func (p *Pool) Matches(choice string) []string {
	prefix := codePrefix(choice)
	var subjects []string
	for _, e := range p.entries {
		if strings.EqualFold(codePrefix(e.Subject), prefix) {
			subjects = append(subjects, e.Subject)
		}
	}
	return subjects
}

func (p *Pool) First(choice string) (string, bool) {
	prefix := codePrefix(choice)
	for _, e := range p.entries {
		if strings.EqualFold(codePrefix(e.Subject), prefix) {
			return e.Subject, true
		}
	}
	return "", false
}

// Remove drops the first entry holding the subject.
func (p *Pool) Remove(subject string) {
	for i, e := range p.entries {
		if e.Subject == subject {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// Printer receives the allocation log.
type Printer interface {
	Printf(format string, args ...interface{})
}

// Allocator distributes the subject pool among faculty in list order.
type Allocator struct {
	pool *Pool
	rnd  *rand.Rand
	log  Printer
}

func NewAllocator(pool *Pool, rnd *rand.Rand, log Printer) *Allocator {
	return &Allocator{pool: pool, rnd: rnd, log: log}
}

// InitialCount is the number of leading faculty who only get SUB_1 in the first pass:
// everyone when the pool fits two subjects per head, fewer otherwise, minus the professors.
func InitialCount(faculty, subjects, professors int) int {
	x := faculty
	if subjects > 2*faculty {
		x = faculty - (subjects - 2*faculty)
	}
	return x - professors
}

// AllocateInitial gives SUB_1 to the first x faculty and tries SUB_1 + SUB_2 for the others.
func (a *Allocator) AllocateInitial(faculty []*Faculty, x int) {
	for i, f := range faculty {
		if i >= x && a.allocatePair(f) {
			continue
		}
		for _, c := range f.Choices {
			if subject, ok := a.pool.First(c.Subject); ok {
				f.assign(0, subject, c.Label)
				if i >= x {
					f.Subjects[1], f.Prefs[1] = null.String{}, null.String{}
				}
				a.pool.Remove(subject)
				break
			}
		}
	}
}

// allocatePair assigns two sections of the first preferred subject offered at least twice.
func (a *Allocator) allocatePair(f *Faculty) bool {
	for _, c := range f.Choices {
		matches := a.pool.Matches(c.Subject)
		if len(matches) < 2 {
			continue
		}
		sub1 := matches[0]
		for _, sub2 := range matches[1:] {
			if Conflicts(sub1, sub2) {
				continue
			}
			f.assign(0, sub1, c.Label)
			f.assign(1, sub2, c.Label)
			a.pool.Remove(sub1)
			a.pool.Remove(sub2)
			a.log.Printf("Assigned SUB_1: %s and SUB_2: %s to %s", sub1, sub2, f.Name)
			return true
		}
		a.log.Printf("Could not find a SUB_2 with different class/section for %s", f.Name)
	}
	return false
}

// FillSecond gives a second section of SUB_1's subject to faculty without SUB_2, past the first x of them.
func (a *Allocator) FillSecond(faculty []*Faculty, x int) {
	var pending []*Faculty
	for _, f := range faculty {
		if !f.Subjects[1].Valid {
			pending = append(pending, f)
		}
	}
	pending = skip(pending, x)

	for _, f := range pending {
		sub1 := f.subject(0)
		if !f.Subjects[0].Valid {
			continue
		}
		for _, candidate := range a.pool.Matches(sub1) {
			if candidate == sub1 {
				continue
			}
			// only the first other section is considered
			if !Conflicts(sub1, candidate) {
				f.assign(1, candidate, PrefRandom)
				a.pool.Remove(candidate)
				a.log.Printf("Assigning SUB_2: %s to faculty %s", candidate, f.EmployeeID)
			}
			break
		}
	}
}

// AllocateThird gives SUB_3 to faculty without one, past the first `professors` of them.
func (a *Allocator) AllocateThird(faculty []*Faculty, professors int) {
	var pending []*Faculty
	for _, f := range faculty {
		if !f.Subjects[2].Valid {
			pending = append(pending, f)
		}
	}
	pending = skip(pending, professors)

	for _, f := range pending {
		free := func(subject string) bool {
			return !Conflicts(f.subject(0), subject) && !Conflicts(f.subject(1), subject)
		}

		assigned := false
		for _, c := range f.Choices {
			for _, subject := range a.pool.Matches(c.Subject) {
				if free(subject) {
					f.assign(2, subject, c.Label)
					a.pool.Remove(subject)
					assigned = true
					break
				}
			}
			if assigned {
				break
			}
		}
		if assigned {
			continue
		}

		entries := a.pool.Entries()
		a.rnd.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		for _, e := range entries {
			if free(e.Subject) {
				f.assign(2, e.Subject, PrefRandom)
				a.pool.Remove(e.Subject)
				assigned = true
				break
			}
		}
		if !assigned {
			a.log.Printf("Warning: Could not assign SUB_3 for faculty %s (%s)", f.Name, f.EmployeeID)
		}
	}
}

// Optimize hands a SUB_3 to faculty still without one: directly from the pool when it fits
// their classes, else by swapping with an allocated faculty's SUB_3.
func (a *Allocator) Optimize(faculty []*Faculty) {
	var unallocated, allocated []*Faculty
	for _, f := range faculty {
		if f.Subjects[2].Valid {
			allocated = append(allocated, f)
		} else {
			unallocated = append(unallocated, f)
		}
	}
	if len(unallocated) == 0 || a.pool.Len() == 0 {
		return
	}

	for _, u := range unallocated {
		if a.pool.Len() == 0 {
			break
		}
		uc := classesOf(u.subject(0), u.subject(1))

		if a.allocateDirect(u, uc) || a.swapSameCode(u, uc, allocated) || a.swapAny(u, uc, allocated) {
			continue
		}
		a.log.Printf("Could not find any allocation or swap for %s (%s)", u.Name, u.EmployeeID)
	}
}

func (a *Allocator) allocateDirect(u *Faculty, uc classes) bool {
	for _, e := range a.pool.Entries() {
		if !uc.clashes(e.Subject) {
			u.assign(2, e.Subject, PrefOptimizedDirect)
			a.pool.Remove(e.Subject)
			a.log.Printf("Direct allocation: %s gets %s", u.Name, e.Subject)
			return true
		}
	}
	return false
}

func (a *Allocator) swapSameCode(u *Faculty, uc classes, allocated []*Faculty) bool {
	for _, f := range allocated {
		sub3 := f.subject(2)
		code := codePrefix(sub3)
		if uc.clashes(sub3) {
			continue
		}
		fc := classesOf(f.subject(0), f.subject(1))
		for _, e := range a.pool.Entries() {
			if codePrefix(e.Subject) != code || fc.clashes(e.Subject) {
				continue
			}
			a.swap(u, f, e.Subject, f.Prefs[2].String)
			return true
		}
	}
	return false
}

func (a *Allocator) swapAny(u *Faculty, uc classes, allocated []*Faculty) bool {
	for _, f := range allocated {
		sub3 := f.subject(2)
		if uc.clashes(sub3) {
			continue
		}
		fc := classesOf(f.subject(0), f.subject(1))
		for _, e := range a.pool.Entries() {
			if fc.clashes(e.Subject) {
				continue
			}
			a.swap(u, f, e.Subject, PrefOptimizedSwap)
			return true
		}
	}
	return false
}

// swap gives f's SUB_3 to u and the pool subject to f, both marked as swapped.
func (a *Allocator) swap(u, f *Faculty, subject, pref string) {
	sub3 := f.subject(2)
	u.assign(2, sub3+SwapMark, pref)
	f.assign(2, subject+SwapMark, pref)
	a.pool.Remove(subject)
	a.log.Printf("Swapped: %s gets %s, %s gets %s", u.Name, sub3, f.Name, subject)
}

func skip(list []*Faculty, n int) []*Faculty {
	if n <= 0 {
		return list
	}
	if n >= len(list) {
		return nil
	}
	return list[n:]
}
