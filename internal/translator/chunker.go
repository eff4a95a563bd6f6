package translator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkLength is the provider request limit in runes.
const DefaultMaxChunkLength = 4000

// Chunk is one piece of a split text. Sep is the separator that followed
// the piece in the source: a line break for line packed chunks, a single
// space between word chunks of one over-long line, and empty at the end.
type Chunk struct {
	Text string
	Sep  string
}

var lineBreakPattern = regexp.MustCompile(`\r?\n`)

// TextChunker splits page text into provider sized chunks.
type TextChunker struct{}

// NewTextChunker creates a TextChunker.
func NewTextChunker() *TextChunker {
	return &TextChunker{}
}

// Split cuts text into chunks of at most maxLength runes. Text that fits is
// returned whole. Otherwise whole lines are packed greedily; a line that is
// longer than maxLength on its own is cut at whitespace, and a single word
// longer than maxLength becomes its own chunk.
func (c *TextChunker) Split(text string, maxLength int) []Chunk {
	if maxLength <= 0 {
		maxLength = DefaultMaxChunkLength
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return []Chunk{{Text: text}}
	}

	lines, seps := splitLines(text)
	if len(lines) == 1 {
		return splitWords(text, maxLength, "")
	}

	var chunks []Chunk
	var pack strings.Builder
	packLen := 0
	packOpen := false
	pendingSep := ""

	flush := func() {
		if packOpen {
			chunks = append(chunks, Chunk{Text: pack.String(), Sep: pendingSep})
			pack.Reset()
			packLen = 0
			packOpen = false
		}
	}

	for i, line := range lines {
		lineLen := utf8.RuneCountInString(line)

		if lineLen > maxLength {
			flush()
			chunks = append(chunks, splitWords(line, maxLength, seps[i])...)
			continue
		}

		if packOpen && packLen+utf8.RuneCountInString(pendingSep)+lineLen <= maxLength {
			pack.WriteString(pendingSep)
			pack.WriteString(line)
			packLen += utf8.RuneCountInString(pendingSep) + lineLen
			pendingSep = seps[i]
			continue
		}

		flush()
		pack.WriteString(line)
		packLen = lineLen
		packOpen = true
		pendingSep = seps[i]
	}
	flush()

	return chunks
}

// Join concatenates chunks with their separators.
func (c *TextChunker) Join(chunks []Chunk) string {
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Text)
		b.WriteString(ch.Sep)
	}
	return b.String()
}

// splitLines returns the lines of text and the break that followed each
// one ("" after the last line).
func splitLines(text string) ([]string, []string) {
	idx := lineBreakPattern.FindAllStringIndex(text, -1)
	lines := make([]string, 0, len(idx)+1)
	seps := make([]string, 0, len(idx)+1)
	start := 0
	for _, m := range idx {
		lines = append(lines, text[start:m[0]])
		seps = append(seps, text[m[0]:m[1]])
		start = m[1]
	}
	lines = append(lines, text[start:])
	seps = append(seps, "")
	return lines, seps
}

// splitWords packs the whitespace separated words of line into chunks of at
// most maxLength runes. Runs of whitespace collapse to a single space. The
// last chunk carries trailingSep.
func splitWords(line string, maxLength int, trailingSep string) []Chunk {
	words := strings.Fields(line)
	if len(words) == 0 {
		return []Chunk{{Text: "", Sep: trailingSep}}
	}

	var chunks []Chunk
	cur := words[0]
	curLen := utf8.RuneCountInString(cur)
	for _, w := range words[1:] {
		wl := utf8.RuneCountInString(w)
		if curLen+1+wl <= maxLength {
			cur += " " + w
			curLen += 1 + wl
			continue
		}
		chunks = append(chunks, Chunk{Text: cur, Sep: " "})
		cur, curLen = w, wl
	}
	chunks = append(chunks, Chunk{Text: cur, Sep: trailingSep})
	return chunks
}
