package translator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"

	"pdf-translator/internal/logger"
)

// IssueTag identifies a kind of quality issue.
type IssueTag string

const (
	IssueSuspiciousYear IssueTag = "suspicious-year-pattern"
	IssueLengthRatio    IssueTag = "length-ratio-out-of-range"
	IssueMissingTerm    IssueTag = "missing-required-term"
)

// Issue is one finding of the quality guard.
type Issue struct {
	Tag    IssueTag `json:"tag"`
	Detail string   `json:"detail"`
	Weight float64  `json:"weight"`
}

// QualityVerdict scores a translation. Lower is better, zero is clean.
type QualityVerdict struct {
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues,omitempty"`
}

// Clean reports whether no issue was found.
func (v QualityVerdict) Clean() bool {
	return len(v.Issues) == 0
}

// Has reports whether the verdict contains an issue with the given tag.
func (v QualityVerdict) Has(tag IssueTag) bool {
	for _, is := range v.Issues {
		if is.Tag == tag {
			return true
		}
	}
	return false
}

func (v *QualityVerdict) add(tag IssueTag, weight float64, detail string) {
	v.Issues = append(v.Issues, Issue{Tag: tag, Detail: detail, Weight: weight})
	v.Score += weight
}

// QualityConfig holds the guard's weights and thresholds.
type QualityConfig struct {
	// MinRepeatedDigits is the shortest run of one repeated digit that is
	// treated as a fabricated year or number.
	MinRepeatedDigits int
	YearPatternWeight float64
	LengthRatioWeight float64
	MissingTermWeight float64
	// Allowed band for non-space runes of translation / source.
	MinLengthRatio float64
	MaxLengthRatio float64
}

// DefaultQualityConfig returns the default weights. A fabricated year
// outweighs any combination of the other two signals on a single page.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinRepeatedDigits: 4,
		YearPatternWeight: 5,
		LengthRatioWeight: 2,
		MissingTermWeight: 1,
		MinLengthRatio:    0.2,
		MaxLengthRatio:    4.0,
	}
}

// QualityGuard detects and repairs known failure modes of machine
// translation output.
type QualityGuard struct {
	config QualityConfig
}

// NewQualityGuard creates a QualityGuard. Zero fields in config take their
// default values.
func NewQualityGuard(config QualityConfig) *QualityGuard {
	def := DefaultQualityConfig()
	if config.MinRepeatedDigits <= 0 {
		config.MinRepeatedDigits = def.MinRepeatedDigits
	}
	if config.YearPatternWeight <= 0 {
		config.YearPatternWeight = def.YearPatternWeight
	}
	if config.LengthRatioWeight <= 0 {
		config.LengthRatioWeight = def.LengthRatioWeight
	}
	if config.MissingTermWeight <= 0 {
		config.MissingTermWeight = def.MissingTermWeight
	}
	if config.MinLengthRatio <= 0 {
		config.MinLengthRatio = def.MinLengthRatio
	}
	if config.MaxLengthRatio <= 0 {
		config.MaxLengthRatio = def.MaxLengthRatio
	}
	return &QualityGuard{config: config}
}

var acronymPattern = regexp.MustCompile(`\b[A-Z]{2,6}\b`)

// Evaluate scores translated against its source text.
func (g *QualityGuard) Evaluate(translated, original string) QualityVerdict {
	var v QualityVerdict

	srcRuns := scanDigitRuns(original)
	for _, run := range scanDigitRuns(translated) {
		if !g.suspicious(run) || echoes(run, srcRuns) {
			continue
		}
		v.add(IssueSuspiciousYear, g.config.YearPatternWeight, translated[run.start:run.end])
	}

	srcLen := nonSpaceLen(original)
	if srcLen > 0 {
		ratio := float64(nonSpaceLen(translated)) / float64(srcLen)
		if ratio < g.config.MinLengthRatio || ratio > g.config.MaxLengthRatio {
			v.add(IssueLengthRatio, g.config.LengthRatioWeight, fmt.Sprintf("ratio %.2f", ratio))
		}
	}

	for _, acr := range missingAcronyms(translated, original) {
		v.add(IssueMissingTerm, g.config.MissingTermWeight, acr)
	}

	return v
}

// Repair removes fabricated digit runs, normalizes whitespace within lines
// and collapses doubled sentence punctuation. Missing acronyms are only
// logged, never inserted.
func (g *QualityGuard) Repair(translated, original string) string {
	out := g.removeFabricatedRuns(translated, original)
	out = normalizeLineWhitespace(out)
	out = collapsePunctuation(out)

	if missing := missingAcronyms(out, original); len(missing) > 0 {
		logger.Warn("translation is missing source acronyms", logger.Strings("acronyms", missing))
	}
	return out
}

// SelectBest returns the candidate with the lowest score and its verdict.
// Ties keep the earlier candidate.
func (g *QualityGuard) SelectBest(candidates []string, original string) (string, QualityVerdict) {
	best := -1
	var bestVerdict QualityVerdict
	for i, c := range candidates {
		v := g.Evaluate(c, original)
		if best < 0 || v.Score < bestVerdict.Score {
			best, bestVerdict = i, v
		}
	}
	if best < 0 {
		return "", bestVerdict
	}
	return candidates[best], bestVerdict
}

func (g *QualityGuard) suspicious(run digitRun) bool {
	return run.uniform && !run.inWord && run.length >= g.config.MinRepeatedDigits
}

// removeFabricatedRuns deletes suspicious runs whose length appears in no
// digit run of the source.
func (g *QualityGuard) removeFabricatedRuns(translated, original string) string {
	srcLengths := make(map[int]bool)
	for _, r := range scanDigitRuns(original) {
		srcLengths[r.length] = true
	}

	var b strings.Builder
	last := 0
	for _, run := range scanDigitRuns(translated) {
		if !g.suspicious(run) || srcLengths[run.length] {
			continue
		}
		b.WriteString(translated[last:run.start])
		last = run.end
	}
	b.WriteString(translated[last:])
	return b.String()
}

type digitRun struct {
	start, end int // byte offsets, end includes a trailing 年
	length     int
	uniform    bool
	inWord     bool   // enclosed by ASCII letters, as in XPT1111X
	digits     string // normalized ASCII digits
}

var cjkDigits = map[rune]byte{
	'〇': '0', '零': '0', '一': '1', '二': '2', '三': '3', '四': '4',
	'五': '5', '六': '6', '七': '7', '八': '8', '九': '9',
}

// digitOf maps ASCII, full-width and CJK numerals to an ASCII digit.
func digitOf(r rune) (byte, bool) {
	if n := width.LookupRune(r).Narrow(); n != 0 {
		r = n
	}
	if r >= '0' && r <= '9' {
		return byte(r), true
	}
	d, ok := cjkDigits[r]
	return d, ok
}

func scanDigitRuns(s string) []digitRun {
	var runs []digitRun
	var cur *digitRun
	for i, r := range s {
		d, ok := digitOf(r)
		if ok {
			if cur == nil {
				cur = &digitRun{start: i, uniform: true}
			}
			if cur.length > 0 && cur.digits[0] != d {
				cur.uniform = false
			}
			cur.digits += string(rune(d))
			cur.length++
			cur.end = i + utf8.RuneLen(r)
			continue
		}
		if cur != nil {
			if r == '年' {
				cur.end = i + utf8.RuneLen(r)
			}
			runs = append(runs, *cur)
			cur = nil
		}
	}
	if cur != nil {
		runs = append(runs, *cur)
	}
	for i := range runs {
		runs[i].inWord = enclosedByLetters(s, runs[i])
	}
	return runs
}

// enclosedByLetters reports whether run sits inside an identifier-like
// token: an ASCII letter on both sides, optionally behind one '-' or '_'.
func enclosedByLetters(s string, run digitRun) bool {
	if strings.HasSuffix(s[:run.end], "年") {
		return false
	}
	before := strings.TrimRight(s[:run.start], "-_")
	if len(s[:run.start])-len(before) > 1 {
		return false
	}
	after := strings.TrimLeft(s[run.end:], "-_")
	if len(s[run.end:])-len(after) > 1 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(before)
	next, _ := utf8.DecodeRuneInString(after)
	return isASCIILetter(prev) && isASCIILetter(next)
}

func isASCIILetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func echoes(run digitRun, source []digitRun) bool {
	for _, s := range source {
		if s.digits == run.digits {
			return true
		}
	}
	return false
}

func nonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// missingAcronyms returns the uppercase acronyms of original that do not
// appear as a word in translated.
func missingAcronyms(translated, original string) []string {
	narrow := width.Narrow.String(translated)
	seen := make(map[string]bool)
	var missing []string
	for _, acr := range acronymPattern.FindAllString(original, -1) {
		if seen[acr] {
			continue
		}
		seen[acr] = true
		if !regexp.MustCompile(`\b` + acr + `\b`).MatchString(narrow) {
			missing = append(missing, acr)
		}
	}
	return missing
}

var horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\x{3000}]+`)

func normalizeLineWhitespace(s string) string {
	lines, seps := splitLines(s)
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " ")))
		b.WriteString(seps[i])
	}
	return b.String()
}

// collapsePunctuation folds doubled sentence-final marks into one. A pair
// of periods becomes one period; an ellipsis of three or more is kept.
func collapsePunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i
		for j < len(runes) && runes[j] == r {
			j++
		}
		n := j - i
		switch {
		case n > 1 && strings.ContainsRune("。！？!?", r):
			b.WriteRune(r)
		case n == 2 && r == '.':
			b.WriteRune(r)
		default:
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}
