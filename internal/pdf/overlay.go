package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Overlay layout in points, measured from the bottom of the page.
const (
	overlayMargin     = 20.0
	overlayTextInset  = 30.0
	overlayFontSize   = 10.0
	overlayLineHeight = 12.0
	overlayMaxLines   = 15
	overlayOpacity    = 0.85
	overlayHeading    = "Translation"
	overlayFontFamily = "overlay"
)

// DefaultFontCandidates are tried in order when no font is configured.
var DefaultFontCandidates = []string{
	"/Library/Fonts/Arial Unicode.ttf",
	"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
	"/usr/share/fonts/truetype/arphic-gkai00mp/gkai00mp.ttf",
}

// OverlayRenderer 在原 PDF 页面下方叠加半透明翻译面板
type OverlayRenderer struct {
	parser         *PDFParser
	workDir        string
	fontPath       string
	fontCandidates []string
}

// NewOverlayRenderer creates an OverlayRenderer. fontPath may be empty, in
// which case DefaultFontCandidates are searched and Helvetica is the last
// resort.
func NewOverlayRenderer(workDir, fontPath string) *OverlayRenderer {
	return &OverlayRenderer{
		parser:         NewPDFParser(),
		workDir:        workDir,
		fontPath:       fontPath,
		fontCandidates: DefaultFontCandidates,
	}
}

// PageCount reads the page count with pdfcpu.
func PageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return ctx.PageCount, nil
}

// Render stamps a translation panel on every page with translated text.
// The document is built in a temporary directory and moved to outputPath
// only once every page is stamped, so a failed render leaves outputPath as
// it was.
func (r *OverlayRenderer) Render(ctx context.Context, sourcePath string, pages []RenderPage, outputPath string) error {
	pageCount, err := PageCount(sourcePath)
	if err != nil {
		return types.NewAppError(types.ErrRender, "cannot read source PDF", err)
	}
	sizes, err := r.parser.PageSizes(sourcePath)
	if err != nil {
		return types.NewAppError(types.ErrRender, "cannot read page sizes", err)
	}

	tmpDir, err := os.MkdirTemp(r.workDir, "overlay-")
	if err != nil {
		return types.NewAppError(types.ErrRender, "cannot create overlay directory", err)
	}
	defer os.RemoveAll(tmpDir)

	document := filepath.Join(tmpDir, "document.pdf")
	if err := copyFile(sourcePath, document); err != nil {
		return types.NewAppError(types.ErrRender, "cannot copy source PDF", err)
	}

	fontPath := r.resolveFont()
	stamped := 0
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return types.NewAppError(types.ErrCancelled, "rendering cancelled", err)
		}
		if strings.TrimSpace(page.Translated) == "" || page.Number < 1 || page.Number > pageCount {
			continue
		}

		size := PageInfo{Number: page.Number, Width: DefaultPageWidth, Height: DefaultPageHeight}
		if page.Number <= len(sizes) {
			size = sizes[page.Number-1]
		}

		overlayPath := filepath.Join(tmpDir, fmt.Sprintf("page-%04d.pdf", page.Number))
		if err := writeOverlayPage(overlayPath, size, page.Translated, fontPath); err != nil {
			return types.NewAppErrorWithPage(types.ErrRender, "cannot draw overlay", page.Number, err)
		}
		if err := stampPage(document, overlayPath, page.Number); err != nil {
			return types.NewAppErrorWithPage(types.ErrRender, "cannot stamp overlay", page.Number, err)
		}
		stamped++
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return types.NewAppError(types.ErrRender, "cannot create output directory", err)
	}
	if err := moveFile(document, outputPath); err != nil {
		return types.NewAppError(types.ErrRender, "cannot write output PDF", err)
	}

	logger.Info("overlay PDF written",
		logger.String("output", filepath.Base(outputPath)),
		logger.Int("stampedPages", stamped))
	return nil
}

func (r *OverlayRenderer) resolveFont() string {
	candidates := r.fontCandidates
	if r.fontPath != "" {
		candidates = append([]string{r.fontPath}, candidates...)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			logger.Debug("using overlay font", logger.String("font", path))
			return path
		}
	}
	logger.Warn("no Unicode font found, using Helvetica")
	return ""
}

// stampPage puts page 1 of overlayPath on top of pageNumber of target,
// rewriting target in place.
func stampPage(target, overlayPath string, pageNumber int) error {
	// 参数前缀需唯一，"sc" 同时匹配 scalefactor 和 scriptname
	wm, err := api.PDFWatermark(overlayPath+":1", "scalefactor:1 abs, rotation:0", true, false, 0)
	if err != nil {
		return fmt.Errorf("failed to create stamp: %w", err)
	}
	if err := api.AddWatermarksFile(target, "", []string{fmt.Sprint(pageNumber)}, wm, nil); err != nil {
		return fmt.Errorf("failed to add stamp: %w", err)
	}
	return nil
}

// writeOverlayPage draws a single page the size of the target page holding
// the translation panel over the lower third.
func writeOverlayPage(path string, size PageInfo, text, fontPath string) error {
	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	doc.AddPage()

	translate := func(s string) string { return s }
	if fontPath != "" {
		doc.AddUTF8Font(overlayFontFamily, "", fontPath)
	}
	if fontPath != "" && doc.Ok() {
		doc.SetFont(overlayFontFamily, "", overlayFontSize)
	} else {
		doc.ClearError()
		doc.SetFont("Helvetica", "", overlayFontSize)
		translate = doc.UnicodeTranslatorFromDescriptor("")
	}

	panelHeight := size.Height / 3
	top := size.Height - panelHeight + overlayMargin

	doc.SetAlpha(overlayOpacity, "Normal")
	doc.SetFillColor(255, 255, 255)
	doc.Rect(overlayMargin, top, size.Width-2*overlayMargin, panelHeight-2*overlayMargin, "F")
	doc.SetAlpha(1, "Normal")

	doc.SetTextColor(0, 0, 0)
	doc.Text(overlayTextInset, size.Height-panelHeight+overlayTextInset, translate(overlayHeading+":"))

	maxWidth := size.Width - 2*overlayTextInset
	measure := func(s string) float64 { return doc.GetStringWidth(translate(s)) }
	y := size.Height - panelHeight + overlayTextInset + 2*overlayLineHeight
	for i, line := range wrapText(text, maxWidth, measure) {
		if i >= overlayMaxLines || y > size.Height-overlayTextInset {
			break
		}
		doc.Text(overlayTextInset, y, translate(line))
		y += overlayLineHeight
	}

	return doc.OutputFileAndClose(path)
}

// wrapText breaks text into lines no wider than maxWidth. Lines break at
// spaces when possible and between any two CJK runes otherwise.
func wrapText(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		runes := []rune(paragraph)
		start := 0
		for start < len(runes) {
			end := start
			lastBreak := -1
			for end < len(runes) && measure(string(runes[start:end+1])) <= maxWidth {
				if unicode.IsSpace(runes[end]) || isWideRune(runes[end]) {
					lastBreak = end
				}
				end++
			}
			switch {
			case end == len(runes):
			case end == start:
				end = start + 1
			case unicode.IsSpace(runes[end]) || isWideRune(runes[end]):
			case lastBreak > start:
				end = lastBreak + 1
			}
			if line := strings.TrimSpace(string(runes[start:end])); line != "" {
				lines = append(lines, line)
			}
			start = end
		}
	}
	return lines
}

func isWideRune(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// moveFile renames src to dst, copying through dst+".part" when the two
// live on different file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	part := dst + ".part"
	if err := copyFile(src, part); err != nil {
		os.Remove(part)
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		os.Remove(part)
		return err
	}
	return nil
}
