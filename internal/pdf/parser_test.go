package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"

	"pdf-translator/internal/types"
)

// writeTestPDF creates a PDF with one page per entry in sizes, each holding
// a line of Helvetica text.
func writeTestPDF(t *testing.T, path string, sizes []fpdf.SizeType) {
	t.Helper()
	doc := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: sizes[0]})
	doc.SetFont("Helvetica", "", 12)
	for i, size := range sizes {
		doc.AddPageFormat("P", size)
		doc.Text(40, 60, "Amazon ElastiCache page "+string(rune('1'+i)))
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("Failed to write test PDF: %v", err)
	}
}

func TestExtract_NonExistentFile(t *testing.T) {
	parser := NewPDFParser()
	_, err := parser.Extract(context.Background(), "/non/existent/file.pdf")
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if !types.IsCode(err, types.ErrFileNotFound) {
		t.Errorf("Expected %s, got %v", types.ErrFileNotFound, err)
	}
}

func TestExtract_Directory(t *testing.T) {
	parser := NewPDFParser()
	_, err := parser.Extract(context.Background(), t.TempDir())
	if !types.IsCode(err, types.ErrExtraction) {
		t.Errorf("Expected %s for a directory, got %v", types.ErrExtraction, err)
	}
}

func TestExtract_InvalidFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pdf")
	if err := os.WriteFile(tmpFile, []byte("This is not a PDF file"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err := NewPDFParser().Extract(context.Background(), tmpFile)
	if !types.IsCode(err, types.ErrExtraction) {
		t.Errorf("Expected %s, got %v", types.ErrExtraction, err)
	}
}

func TestExtract_PageCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeTestPDF(t, path, []fpdf.SizeType{{Wd: DefaultPageWidth, Ht: DefaultPageHeight}, {Wd: 300, Ht: 400}})

	pages, err := NewPDFParser().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("Expected 2 pages, got %d", len(pages))
	}
}

func TestExtract_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeTestPDF(t, path, []fpdf.SizeType{{Wd: DefaultPageWidth, Ht: DefaultPageHeight}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPDFParser().Extract(ctx, path); !types.IsCode(err, types.ErrCancelled) {
		t.Errorf("Expected %s, got %v", types.ErrCancelled, err)
	}
}

func TestPageSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.pdf")
	writeTestPDF(t, path, []fpdf.SizeType{{Wd: DefaultPageWidth, Ht: DefaultPageHeight}, {Wd: 300, Ht: 400}})

	infos, err := NewPDFParser().PageSizes(path)
	if err != nil {
		t.Fatalf("PageSizes failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(infos))
	}

	want := []PageInfo{
		{Number: 1, Width: DefaultPageWidth, Height: DefaultPageHeight},
		{Number: 2, Width: 300, Height: 400},
	}
	for i, w := range want {
		got := infos[i]
		if got.Number != w.Number || abs(got.Width-w.Width) > 0.5 || abs(got.Height-w.Height) > 0.5 {
			t.Errorf("page %d: got %+v, want %+v", i+1, got, w)
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestIsPostScriptCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{
			name:     "PostScript with def",
			text:     "/burl@stx null def /BU.S /burl@stx null def def",
			expected: true,
		},
		{
			name:     "PostScript with currentpoint",
			text:     "/BU.SS currentpoint /burl@",
			expected: true,
		},
		{
			name:     "PostScript with multiple operators",
			text:     "gsave newpath moveto lineto stroke grestore",
			expected: true,
		},
		{
			name:     "PostScript with @stx marker",
			text:     "some text @stx more text",
			expected: true,
		},
		{
			name:     "PostScript with many slashes",
			text:     "/Name1 /Name2 /Name3 /Name4 /Name5",
			expected: true,
		},
		{
			name:     "Normal English text",
			text:     "Fill in the form and stroke the key.",
			expected: false,
		},
		{
			name:     "Normal Chinese text",
			text:     "這是一段正常的中文文本。",
			expected: false,
		},
		{
			name:     "AWS product line",
			text:     "Amazon ElastiCache for Redis OSS",
			expected: false,
		},
		{
			name:     "Empty string",
			text:     "",
			expected: false,
		},
		{
			name:     "URL with slashes",
			text:     "See https://docs.aws.amazon.com/a/b/c for details",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isPostScriptCode(tt.text)
			if result != tt.expected {
				t.Errorf("isPostScriptCode(%q) = %v, want %v", tt.text, result, tt.expected)
			}
		})
	}
}

// TestHasExcessiveNonPrintable tests the non-printable character detection
func TestHasExcessiveNonPrintable(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{"Normal text", "This is normal text.", false},
		{"Text with tabs", "Column1\tColumn2\tColumn3", false},
		{"Empty string", "", false},
		{"Text with control characters", "Text\x00\x01\x02\x03\x04\x05more", true},
		{"Chinese text", "這是中文文本", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasExcessiveNonPrintable(tt.text)
			if result != tt.expected {
				t.Errorf("hasExcessiveNonPrintable(%q) = %v, want %v", tt.text, result, tt.expected)
			}
		})
	}
}
