package robots

import (
	"regexp"
	"strings"
)

const disallowToken = "Disallow:"

// disallowPattern captures everything after a Disallow directive. \s*
// crosses line breaks and .+ keeps trailing spaces, carriage returns and
// inline comments.
var disallowPattern = regexp.MustCompile(`(?i)Disallow:\s*(.+)`)

// ExtractDisallowPaths returns the captures of every Disallow directive in
// text, in document order. The pattern only runs when text contains the
// case-sensitive token "Disallow:"; scanned reports whether it did.
//
// With trim set each capture is trimmed and empty results are dropped.
func ExtractDisallowPaths(text string, trim bool) (paths []string, scanned bool) {
	if !strings.Contains(text, disallowToken) {
		return []string{}, false
	}

	matches := disallowPattern.FindAllStringSubmatch(text, -1)
	paths = make([]string, 0, len(matches))
	for _, m := range matches {
		path := m[1]
		if trim {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
		}
		paths = append(paths, path)
	}
	return paths, true
}
