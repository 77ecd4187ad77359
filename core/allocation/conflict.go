package allocation

import (
	"regexp"
	"strings"
)

var (
	yearTags   = []string{"1stYear", "2ndYear", "3rdYear", "4thYear"}
	sectionTag = regexp.MustCompile(`CSE-[A-Z]`)
)

// yearOf returns the first year tag found in the subject.
func yearOf(subject string) string {
	for _, tag := range yearTags {
		if strings.Contains(subject, tag) {
			return tag
		}
	}
	return ""
}

// lastYearOf returns the last year tag (in tag order) found in the subject.
func lastYearOf(subject string) string {
	var year string
	for _, tag := range yearTags {
		if strings.Contains(subject, tag) {
			year = tag
		}
	}
	return year
}

func sectionOf(subject string) string {
	return sectionTag.FindString(subject)
}

// Conflicts reports whether both subjects are taught to the same class: same year and same section.
// Subjects missing either tag never conflict.
func Conflicts(subject1, subject2 string) bool {
	if subject1 == "" || subject2 == "" {
		return false
	}
	year1, year2 := lastYearOf(subject1), lastYearOf(subject2)
	section1, section2 := sectionOf(subject1), sectionOf(subject2)
	if year1 == "" || year2 == "" || section1 == "" || section2 == "" {
		return false
	}
	return year1 == year2 && section1 == section2
}

// classes gathers the year and section tags of the given subjects.
type classes struct {
	years, sections []string
}

func classesOf(subjects ...string) classes {
	var c classes
	for _, s := range subjects {
		if s == "" {
			continue
		}
		if y := yearOf(s); y != "" {
			c.years = append(c.years, y)
		}
		if sec := sectionOf(s); sec != "" {
			c.sections = append(c.sections, sec)
		}
	}
	return c
}

// clashes reports whether the subject's year and section both appear among the classes.
// Unlike Conflicts, the year and section may come from different subjects.
func (c classes) clashes(subject string) bool {
	year, section := yearOf(subject), sectionOf(subject)
	return year != "" && section != "" && contains(c.years, year) && contains(c.sections, section)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
