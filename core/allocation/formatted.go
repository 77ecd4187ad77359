package allocation

import (
	"fmt"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/slotwise/slotwise/core/schema"
)

const FormattedTable = "Sortedtableformatted"

// FormatTable splits every allocated subject into its year digit and class.
func FormatTable(faculty []*Faculty) *schema.Table {
	t := schema.NewTable(FormattedTable, "Name", "Employee_ID")
	for n := 1; n <= 3; n++ {
		t.AddColumn(fmt.Sprintf("SUB_%d", n), schema.TypeText)
		t.AddColumn(fmt.Sprintf("SUB_%d_Year", n), schema.TypeText)
		t.AddColumn(fmt.Sprintf("SUB_%d_Class", n), schema.TypeText)
	}
	for _, f := range faculty {
		values := []null.String{schema.Str(f.Name), schema.Str(f.EmployeeID)}
		for _, sub := range f.Subjects {
			values = append(values, sub, subjectYear(sub), subjectClass(sub))
		}
		t.AppendRow(values...)
	}
	return t
}

// subjectYear extracts the digit of the `(2ndYear)` group: "DS (2ndYear) (CSE-A)" -> "2".
func subjectYear(sub null.String) null.String {
	if !sub.Valid {
		return sub
	}
	s := substringIndex(sub.String, "(", -2)
	s = substringIndex(s, ")", 1)
	s = substringIndex(s, "year", 1)
	if s == "" {
		return schema.Str("")
	}
	return schema.Str(string([]rune(s)[:1]))
}

// subjectClass extracts the last parenthesised group: "DS (2ndYear) (CSE-A)" -> "CSE-A".
func subjectClass(sub null.String) null.String {
	if !sub.Valid {
		return sub
	}
	return schema.Str(substringIndex(substringIndex(sub.String, "(", -1), ")", 1))
}

// substringIndex returns s before the count-th occurrence of delim, or after the
// count-th occurrence from the right when count is negative. With fewer occurrences s is returned whole.
func substringIndex(s, delim string, count int) string {
	if count == 0 || delim == "" {
		return ""
	}
	parts := strings.Split(s, delim)
	if count > 0 {
		if count >= len(parts) {
			return s
		}
		return strings.Join(parts[:count], delim)
	}
	count = -count
	if count >= len(parts) {
		return s
	}
	return strings.Join(parts[len(parts)-count:], delim)
}

// Summary counts allocated subjects.
type Summary struct {
	Total, Sub1, Sub2, Sub3 int
}

func Summarize(faculty []*Faculty) Summary {
	s := Summary{Total: len(faculty)}
	for _, f := range faculty {
		if f.Subjects[0].Valid {
			s.Sub1++
		}
		if f.Subjects[1].Valid {
			s.Sub2++
		}
		if f.Subjects[2].Valid {
			s.Sub3++
		}
	}
	return s
}

// Conflict is a faculty teaching two subjects to the same class.
type Conflict struct {
	Faculty    string
	EmployeeID string
	Between    string
	First      string
	Second     string
}

func FindConflicts(faculty []*Faculty) []Conflict {
	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	var conflicts []Conflict
	for _, f := range faculty {
		for _, p := range pairs {
			a, b := f.subject(p[0]), f.subject(p[1])
			if a == "" || b == "" || !Conflicts(a, b) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Faculty:    f.Name,
				EmployeeID: f.EmployeeID,
				Between:    fmt.Sprintf("SUB_%d and SUB_%d", p[0]+1, p[1]+1),
				First:      a,
				Second:     b,
			})
		}
	}
	return conflicts
}

// Swapped lists the faculty whose SUB_3 came from an optimisation swap.
func Swapped(faculty []*Faculty) []*Faculty {
	var swapped []*Faculty
	for _, f := range faculty {
		if strings.HasSuffix(f.subject(2), SwapMark) {
			swapped = append(swapped, f)
		}
	}
	return swapped
}
