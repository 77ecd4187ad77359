package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflicts(t *testing.T) {
	tests := []struct {
		name     string
		sub1     string
		sub2     string
		expected bool
	}{
		{"same class", "CS101 / Maths (1stYear) (CSE-A)", "CS102 / Physics (1stYear) (CSE-A)", true},
		{"elective", "CS101 / Maths (2ndYear) (CSE-B)", "CS150 / AI (2ndYear)(CSE-B)*", true},
		{"other section", "CS101 / Maths (1stYear) (CSE-A)", "CS101 / Maths (1stYear) (CSE-B)", false},
		{"other year", "CS101 / Maths (1stYear) (CSE-A)", "CS201 / Graphs (2ndYear) (CSE-A)", false},
		{"no section", "CS101 / Maths (1stYear)", "CS102 / Physics (1stYear) (CSE-A)", false},
		{"no year", "CS101 / Maths (CSE-A)", "CS102 / Physics (1stYear) (CSE-A)", false},
		{"empty", "", "CS102 / Physics (1stYear) (CSE-A)", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Conflicts(tc.sub1, tc.sub2))
			assert.Equal(t, tc.expected, Conflicts(tc.sub2, tc.sub1))
		})
	}
}

func TestClasses_clashes(t *testing.T) {
	c := classesOf("CS101 / Maths (1stYear) (CSE-A)", "CS201 / Graphs (2ndYear) (CSE-B)", "")

	assert.True(t, c.clashes("CS102 / Physics (1stYear) (CSE-A)"))
	// year and section may come from different subjects
	assert.True(t, c.clashes("CS103 / Chemistry (1stYear) (CSE-B)"))
	assert.False(t, c.clashes("CS301 / Compilers (3rdYear) (CSE-A)"))
	assert.False(t, c.clashes("CS104 / Biology (1stYear) (CSE-C)"))
	assert.False(t, c.clashes("Unlabelled"))
	assert.False(t, classes{}.clashes("CS102 / Physics (1stYear) (CSE-A)"))
}

func TestSubstringIndex(t *testing.T) {
	tests := []struct {
		s, delim string
		count    int
		expected string
	}{
		{"a(b(c", "(", 1, "a"},
		{"a(b(c", "(", 2, "a(b"},
		{"a(b(c", "(", 3, "a(b(c"},
		{"a(b(c", "(", -1, "c"},
		{"a(b(c", "(", -2, "b(c"},
		{"a(b(c", "(", -5, "a(b(c"},
		{"abc", "(", 1, "abc"},
		{"abc", "(", 0, ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, substringIndex(tc.s, tc.delim, tc.count), "%q %q %d", tc.s, tc.delim, tc.count)
	}
}
