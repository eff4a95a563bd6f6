package translator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"pdf-translator/internal/logger"
)

// Marker tokens look like XPT0001X: uppercase letters and digits only, so
// providers pass them through untouched and they never read as a word of
// the target language. The middle letter of the prefix moves along when
// the source text already contains a token of the same shape.
var markerPrefixes = []string{"XPT", "XQT", "XRT", "XST", "XUT", "XVT", "XWT", "XYT", "XZT"}

const markerSuffix = "X"

// MarkerMap records which source occurrence each marker replaced.
type MarkerMap struct {
	Prefix  string
	Entries map[string]string
}

// Len returns the number of markers.
func (m MarkerMap) Len() int {
	return len(m.Entries)
}

// Markers returns the marker tokens in index order.
func (m MarkerMap) Markers() []string {
	out := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m MarkerMap) marker(index int) string {
	return fmt.Sprintf("%s%04d%s", m.Prefix, index, markerSuffix)
}

// RestoreResult is the outcome of Restore.
type RestoreResult struct {
	Text string
	// Restored counts markers found verbatim.
	Restored int
	// Recovered lists altered marker tokens that were still mapped back,
	// such as "xpt 0003 x" or full-width digits.
	Recovered []string
	// Unresolved lists marker shaped tokens with no known index. They are
	// left in Text.
	Unresolved []string
	// MissingTerms lists source occurrences whose marker did not survive
	// translation.
	MissingTerms []string
}

// Clean reports whether every marker came back and nothing is left over.
func (r RestoreResult) Clean() bool {
	return len(r.Unresolved) == 0 && len(r.MissingTerms) == 0
}

// TermProtector masks protected terms before translation and puts them back
// afterwards.
type TermProtector struct{}

// NewTermProtector creates a TermProtector.
func NewTermProtector() *TermProtector {
	return &TermProtector{}
}

// Protect replaces every occurrence of the given terms with a marker.
// Longer terms are matched first so "Amazon Web Services" wins over
// "Amazon". Terms containing whitespace match exactly; single words match
// case-insensitively on word boundaries. The replaced text, including its
// original casing, is stored in the returned MarkerMap.
func (p *TermProtector) Protect(text string, terms []string) (string, MarkerMap) {
	markers := MarkerMap{Prefix: choosePrefix(text), Entries: make(map[string]string)}
	if text == "" || len(terms) == 0 {
		return text, markers
	}

	taken := exactMarkerPattern(markers.Prefix)
	next := 1
	out := text

	for _, term := range orderTerms(terms) {
		var spans [][]int
		if strings.ContainsFunc(term, unicode.IsSpace) {
			spans = findPhraseSpans(out, term)
		} else {
			spans = findWordSpans(out, term)
		}
		spans = dropOverlapping(spans, taken.FindAllStringIndex(out, -1))
		if len(spans) == 0 {
			continue
		}

		tokens := make([]string, len(spans))
		for i, s := range spans {
			tokens[i] = markers.marker(next)
			markers.Entries[tokens[i]] = out[s[0]:s[1]]
			next++
		}
		// Replace from the end so earlier offsets stay valid
		for i := len(spans) - 1; i >= 0; i-- {
			out = out[:spans[i][0]] + tokens[i] + out[spans[i][1]:]
		}

		logger.Debug("term protected",
			logger.String("term", term),
			logger.Int("occurrences", len(spans)))
	}

	return out, markers
}

// Restore replaces markers in a translated text with the source occurrences
// they stand for. Tokens the provider altered (spacing, case, full-width
// digits) are recovered through a tolerant match.
func (p *TermProtector) Restore(text string, markers MarkerMap) RestoreResult {
	res := RestoreResult{Text: text}
	if markers.Prefix == "" {
		return res
	}

	found := make(map[string]bool, len(markers.Entries))
	out := text
	for _, marker := range markers.Markers() {
		if strings.Contains(out, marker) {
			out = strings.ReplaceAll(out, marker, markers.Entries[marker])
			found[marker] = true
			res.Restored++
		}
	}

	residual := residualMarkerPattern(markers.Prefix)
	out = residual.ReplaceAllStringFunc(out, func(token string) string {
		sub := residual.FindStringSubmatch(token)
		if len(sub) == 2 {
			if n, err := strconv.Atoi(width.Narrow.String(sub[1])); err == nil {
				marker := markers.marker(n)
				if original, ok := markers.Entries[marker]; ok {
					found[marker] = true
					res.Recovered = append(res.Recovered, token)
					return original
				}
			}
		}
		res.Unresolved = append(res.Unresolved, token)
		return token
	})

	for _, marker := range markers.Markers() {
		if !found[marker] {
			res.MissingTerms = append(res.MissingTerms, markers.Entries[marker])
		}
	}

	res.Text = out
	return res
}

// choosePrefix picks the first marker prefix the text does not already
// contain in any spelling.
func choosePrefix(text string) string {
	for _, prefix := range markerPrefixes {
		if !residualMarkerPattern(prefix).MatchString(text) {
			return prefix
		}
	}
	logger.Warn("all marker prefixes occur in source text", logger.String("prefix", markerPrefixes[len(markerPrefixes)-1]))
	return markerPrefixes[len(markerPrefixes)-1]
}

func exactMarkerPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `[0-9]+` + regexp.QuoteMeta(markerSuffix))
}

// residualMarkerPattern matches a marker in any case, with separators
// between its parts and with full-width letters or digits.
func residualMarkerPattern(prefix string) *regexp.Regexp {
	const sep = `[ \t\x{00A0}\x{3000}\-_.\x{00B7}\x{30FB}]*`
	var b strings.Builder
	for _, r := range prefix {
		b.WriteString(letterClass(r))
		b.WriteString(sep)
	}
	b.WriteString(`([0-9\x{FF10}-\x{FF19}]{1,6})`)
	b.WriteString(sep)
	b.WriteString(letterClass(rune(markerSuffix[0])))
	return regexp.MustCompile(b.String())
}

func letterClass(r rune) string {
	upper, lower := unicode.ToUpper(r), unicode.ToLower(r)
	// Full-width forms sit at a fixed offset from ASCII
	const offset = 0xFF21 - 'A'
	return fmt.Sprintf(`[%c%c\x{%X}\x{%X}]`, upper, lower, upper+offset, lower+offset)
}

// orderTerms trims and deduplicates terms and sorts them longest first.
func orderTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

func findPhraseSpans(text, phrase string) [][]int {
	var spans [][]int
	for start := 0; start <= len(text); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			break
		}
		s := start + i
		spans = append(spans, []int{s, s + len(phrase)})
		start = s + len(phrase)
	}
	return spans
}

func findWordSpans(text, word string) [][]int {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
	var spans [][]int
	for _, s := range re.FindAllStringIndex(text, -1) {
		if atWordBoundary(text, s[0], s[1]) {
			spans = append(spans, s)
		}
	}
	return spans
}

// atWordBoundary reports whether text[start:end] is not glued to
// neighbouring letters or digits. Scripts written without spaces
// (Han, kana, Thai) never form a boundary violation.
func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:end])
		if isSpacedWordRune(before) && isSpacedWordRune(first) {
			return false
		}
	}
	if end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		last, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isSpacedWordRune(after) && isSpacedWordRune(last) {
			return false
		}
	}
	return true
}

func isSpacedWordRune(r rune) bool {
	if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
		return false
	}
	return !unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai)
}

// dropOverlapping removes spans that intersect any of the taken spans.
func dropOverlapping(spans, taken [][]int) [][]int {
	if len(taken) == 0 {
		return spans
	}
	out := spans[:0]
	for _, s := range spans {
		overlaps := false
		for _, t := range taken {
			if s[0] < t[1] && t[0] < s[1] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			out = append(out, s)
		}
	}
	return out
}
