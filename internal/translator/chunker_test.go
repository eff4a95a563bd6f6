package translator

import (
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"
)

func TestSplit_FitsInOneChunk(t *testing.T) {
	c := NewTextChunker()
	text := "Short page.\nSecond line."

	chunks := c.Split(text, 100)
	if len(chunks) != 1 || chunks[0].Text != text || chunks[0].Sep != "" {
		t.Fatalf("expected the whole text as one chunk, got %+v", chunks)
	}
}

func TestSplit_LongPageByLines(t *testing.T) {
	c := NewTextChunker()
	line := strings.Repeat("雲", 99)
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n")
	if utf8.RuneCountInString(text) <= DefaultMaxChunkLength {
		t.Fatal("test text should exceed the default limit")
	}

	chunks := c.Split(text, 0)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > DefaultMaxChunkLength {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	if got := c.Join(chunks); got != text {
		t.Error("Join(Split(text)) must reproduce a text whose lines fit the limit")
	}
}

func TestSplit_OverlongLineByWords(t *testing.T) {
	c := NewTextChunker()
	words := make([]string, 300)
	for i := range words {
		words[i] = "word"
	}
	longLine := strings.Join(words, " ")
	text := "Title\n" + longLine + "\nFooter"

	chunks := c.Split(text, 100)
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 100 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	if got := c.Join(chunks); got != text {
		t.Errorf("Join(Split(text)) = %q", got)
	}
	if strings.Count(c.Join(chunks), "\n") != 2 {
		t.Error("line breaks must be preserved")
	}
}

func TestSplit_OverlongWordIsItsOwnChunk(t *testing.T) {
	c := NewTextChunker()
	giant := strings.Repeat("x", 50)
	text := "aa bb " + giant + " cc"

	chunks := c.Split(text, 10)
	var found bool
	for _, ch := range chunks {
		if ch.Text == giant {
			found = true
		} else if utf8.RuneCountInString(ch.Text) > 10 {
			t.Errorf("only the single long word may exceed the limit, got %q", ch.Text)
		}
	}
	if !found {
		t.Errorf("expected the long word as its own chunk: %+v", chunks)
	}
	if got := c.Join(chunks); got != text {
		t.Errorf("Join = %q, want %q", got, text)
	}
}

func TestSplit_PreservesCRLF(t *testing.T) {
	c := NewTextChunker()
	text := "first line\r\nsecond line\r\nthird line"

	chunks := c.Split(text, 12)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
	if chunks[0].Sep != "\r\n" || chunks[2].Sep != "" {
		t.Errorf("unexpected separators %+v", chunks)
	}
	if got := c.Join(chunks); got != text {
		t.Errorf("Join = %q", got)
	}
}

func TestSplit_WhitespaceOnlyOverlongLine(t *testing.T) {
	c := NewTextChunker()
	text := "a\n" + strings.Repeat(" ", 20) + "\nb"

	chunks := c.Split(text, 5)
	if strings.Count(c.Join(chunks), "\n") != 2 {
		t.Errorf("blank line separators lost: %+v", chunks)
	}
}

func TestSplitJoin_RoundTrip_Quick(t *testing.T) {
	c := NewTextChunker()
	words := []string{"cloud", "service", "雲端", "服務", "a", "XPT0001X", "data,", "x"}

	f := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		maxLen := r.Intn(40) + 20

		var lines []string
		for i := 0; i < r.Intn(12)+1; i++ {
			var line []string
			for j := 0; j < r.Intn(30); j++ {
				line = append(line, words[r.Intn(len(words))])
			}
			lines = append(lines, strings.Join(line, " "))
		}
		text := strings.Join(lines, "\n")

		chunks := c.Split(text, maxLen)
		for _, ch := range chunks {
			if utf8.RuneCountInString(ch.Text) > maxLen {
				return false
			}
		}
		return c.Join(chunks) == text
	}

	if err := quick.Check(f, quickConfig()); err != nil {
		t.Errorf("split/join property failed: %v", err)
	}
}
