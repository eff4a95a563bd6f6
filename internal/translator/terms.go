package translator

import "strings"

// placeholderPrefix marks example lines in a terms file that are not terms
// (for instance "<one term per line>").
const placeholderPrefix = "<"

// ParseProtectedTerms parses a user supplied term list. Input with line
// breaks is read one term per line, otherwise as a comma separated list.
// Entries are trimmed, empty entries and placeholder lines are dropped, and
// duplicates are removed keeping the first occurrence.
func ParseProtectedTerms(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var candidates []string
	if strings.Contains(strings.TrimSpace(raw), "\n") {
		candidates = strings.Split(raw, "\n")
	} else {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, placeholderPrefix) {
			return nil
		}
		candidates = strings.Split(line, ",")
	}

	seen := make(map[string]bool, len(candidates))
	terms := make([]string, 0, len(candidates))
	for _, c := range candidates {
		term := strings.TrimSpace(c)
		if term == "" || strings.HasPrefix(term, placeholderPrefix) || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}
