package library

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// cleanName trims and NFC-normalizes a user-supplied name.
func cleanName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// foldKey is the comparison key for case-insensitive uniqueness of
// usernames, emails and category names.
func foldKey(s string) string {
	// Casers carry state and are not shared between goroutines.
	return cases.Fold().String(cleanName(s))
}

func sameName(a, b string) bool { return foldKey(a) == foldKey(b) }

// cleanCategories trims names, drops empties and removes case-insensitive
// duplicates, keeping the first spelling and the original order.
func cleanCategories(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = cleanName(n)
		if n == "" {
			continue
		}
		k := foldKey(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
