package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nonWordRegex = regexp.MustCompile(`\W+`)
	spacesRegex  = regexp.MustCompile(`\s+`)
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanIdentifier replaces every run of non-word characters in the trimmed `s` with an underscore.
func CleanIdentifier(s string) string {
	return nonWordRegex.ReplaceAllString(strings.TrimSpace(s), "_")
}

// SquashSpaces trims `s` and collapses inner whitespace runs into single spaces.
func SquashSpaces(s string) string {
	return spacesRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Getwd finds the project root: the closest parent directory holding a go.mod file.
// go test runs in the package directory, so the working directory alone is not enough.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd // no go.mod (e.g. deployed binary): use the working directory
		}
		currDir = newDir
	}
}
