package policy

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseKeepList reads a newline-delimited keep list.
// Blank lines and lines starting with '#' are ignored; names are trimmed
// and deduplicated case-insensitively, keeping the first spelling seen.
func ParseKeepList(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keep list: %w", err)
	}
	return MergeKeepNames(names), nil
}

// MergeKeepNames combines keep lists from several sources (config defaults,
// --keep flags, keep files) into one trimmed, deduplicated list.
// Order follows first appearance.
func MergeKeepNames(lists ...[]string) []string {
	seen := NewFoldSet()
	merged := make([]string, 0)
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen.Has(name) {
				continue
			}
			seen.Add(name)
			merged = append(merged, name)
		}
	}
	return merged
}
