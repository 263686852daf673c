// Package policy holds the fixed preservation rules of the removal engine:
// keep-list parsing, case-insensitive matching and well-known system accounts.
package policy

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the trimmed, Unicode case-folded form of s.
// All account name and SID comparisons go through Fold.
// A cases.Caser carries state, so each call gets its own.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// FoldSet is a set of strings compared case-insensitively.
type FoldSet map[string]struct{}

// NewFoldSet creates a set holding the folded form of items.
func NewFoldSet(items ...string) FoldSet {
	s := make(FoldSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item. Empty items are ignored.
func (s FoldSet) Add(item string) {
	key := Fold(item)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

// Has reports whether item is in the set.
func (s FoldSet) Has(item string) bool {
	_, ok := s[Fold(item)]
	return ok
}

// Len returns the number of distinct entries.
func (s FoldSet) Len() int {
	return len(s)
}
