package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// PDFParser 负责解析 PDF 并提取每页文本
type PDFParser struct{}

// NewPDFParser creates a new PDFParser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "source PDF not found", path, err)
		}
		return nil, nil, types.NewAppErrorWithDetails(types.ErrExtraction, "cannot access source PDF", path, err)
	}
	if fileInfo.IsDir() {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrExtraction, "path is a directory", path, nil)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrExtraction, "cannot open PDF", path, err)
	}
	return f, r, nil
}

// Extract returns the text of every page in order. Pages without a text
// layer yield an empty string so page numbers stay aligned.
func (p *PDFParser) Extract(ctx context.Context, path string) ([]string, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, types.NewAppError(types.ErrCancelled, "extraction cancelled", err)
		}

		text, err := extractPage(r.Page(pageNum))
		if err != nil {
			// 单页失败不影响其他页面
			logger.Warn("failed to extract page text",
				logger.Int("page", pageNum),
				logger.Err(err))
		}
		pages = append(pages, text)
	}

	logger.Info("extracted PDF text",
		logger.String("path", path),
		logger.Int("pages", total))
	return pages, nil
}

func extractPage(page pdf.Page) (string, error) {
	if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
		return "", nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		var prevEnd float64
		first := true

		for _, text := range row.Content {
			if text.S == "" || isPostScriptCode(text.S) {
				continue
			}
			// 根据字符间距补回空格
			if !first && text.X-prevEnd > text.FontSize*0.25 &&
				!strings.HasPrefix(text.S, " ") && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			sb.WriteString(text.S)
			prevEnd = text.X + text.W
			first = false
		}

		line := strings.TrimSpace(sb.String())
		if line == "" || hasExcessiveNonPrintable(line) {
			continue
		}
		lines = append(lines, line)
	}

	forms, err := formText(page)
	for _, line := range forms {
		if !isPostScriptCode(line) && !hasExcessiveNonPrintable(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), err
}

// maxFormDepth bounds how deeply nested form XObjects are followed.
const maxFormDepth = 4

// rawEncoding passes code points through when a font cannot be resolved.
type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string { return raw }

// formText returns the lines shown inside form XObjects painted by the
// page, such as stamped overlays. GetTextByRow reads the page content
// stream only.
func formText(page pdf.Page) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cannot read form XObject: %v", r)
		}
	}()
	walkForms(page.V, page.V.Key("Contents"), 0, &lines)
	return lines, nil
}

// walkForms interprets strm, whose resources are found through owner, and
// collects the text of every form it paints. Text of strm itself is
// collected only below the page level.
func walkForms(owner, strm pdf.Value, depth int, lines *[]string) {
	res := pdf.Page{V: owner}
	xobjects := res.Resources().Key("XObject")

	var enc pdf.TextEncoding = rawEncoding{}
	var sb strings.Builder
	var forms []pdf.Value
	flush := func() {
		if line := strings.TrimSpace(sb.String()); line != "" {
			*lines = append(*lines, line)
		}
		sb.Reset()
	}

	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		if op == "Do" && len(args) == 1 && depth < maxFormDepth {
			xo := xobjects.Key(args[0].Name())
			if xo.Kind() == pdf.Stream && xo.Key("Subtype").Name() == "Form" {
				forms = append(forms, xo)
			}
		}
		if depth == 0 {
			return
		}

		switch op {
		case "Tf":
			enc = rawEncoding{}
			if len(args) == 2 {
				if font := res.Font(args[0].Name()); !font.V.IsNull() {
					enc = font.Encoder()
				}
			}
		case "Tj", "'", "\"":
			if op != "Tj" {
				flush()
			}
			if len(args) > 0 {
				sb.WriteString(enc.Decode(args[len(args)-1].RawString()))
			}
		case "TJ":
			if len(args) == 1 {
				for i := 0; i < args[0].Len(); i++ {
					if v := args[0].Index(i); v.Kind() == pdf.String {
						sb.WriteString(enc.Decode(v.RawString()))
					}
				}
			}
		case "Td", "TD":
			if len(args) == 2 && args[1].Float64() != 0 {
				flush()
			}
		case "T*", "ET":
			flush()
		}
	})
	flush()

	for _, form := range forms {
		walkForms(form, form, depth+1, lines)
	}
}

// PageSizes returns the MediaBox size of every page, falling back to A4.
func (p *PDFParser) PageSizes(path string) ([]PageInfo, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	infos := make([]PageInfo, 0, r.NumPage())
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		info := PageInfo{Number: pageNum, Width: DefaultPageWidth, Height: DefaultPageHeight}
		if w, h, ok := mediaBox(r.Page(pageNum).V); ok {
			info.Width, info.Height = w, h
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// mediaBox reads the page MediaBox, following Parent links for inherited boxes.
func mediaBox(v pdf.Value) (width, height float64, ok bool) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			width = box.Index(2).Float64() - box.Index(0).Float64()
			height = box.Index(3).Float64() - box.Index(1).Float64()
			if width < 0 {
				width = -width
			}
			if height < 0 {
				height = -height
			}
			return width, height, width > 0 && height > 0
		}
		v = v.Key("Parent")
	}
	return 0, 0, false
}

// isPostScriptCode detects PostScript operator code that some producers
// leak into the text layer.
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" is the most reliable indicator
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	for _, pattern := range []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
	} {
		if strings.Contains(textLower, pattern) {
			return true
		}
	}

	// URLs also have slashes
	if strings.Contains(text, "://") || strings.Contains(textLower, "http") {
		return false
	}
	slashNameCount := 0
	for _, word := range strings.Fields(text) {
		if len(word) < 2 || word[0] != '/' {
			continue
		}
		isName := true
		for _, c := range word[1:] {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
				isName = false
				break
			}
		}
		if isName {
			slashNameCount++
		}
	}
	return slashNameCount >= 3
}

// hasExcessiveNonPrintable checks if text has too many non-printable characters
func hasExcessiveNonPrintable(text string) bool {
	total := 0
	nonPrintable := 0
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	// 超过 10% 视为乱码
	return float64(nonPrintable)/float64(total) > 0.1
}
