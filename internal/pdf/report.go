package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	reportRule      = "=================================================="
	pageRule        = "------------------------------"
	previewPages    = 3
	previewMaxRunes = 150
)

// TextReportPath returns the path of the plain-text report written next to
// targetPath ("out.pdf" -> "out_translation.txt").
func TextReportPath(targetPath string) string {
	ext := filepath.Ext(targetPath)
	return strings.TrimSuffix(targetPath, ext) + "_translation.txt"
}

// WriteTextReport writes every page's original and translated text as UTF-8.
func WriteTextReport(path string, pages []RenderPage, targetLang string) error {
	var sb strings.Builder
	sb.WriteString("PDF Translation Report\n")
	sb.WriteString(reportRule + "\n\n")

	for _, page := range pages {
		fmt.Fprintf(&sb, "Page %d\n", page.Number)
		sb.WriteString(pageRule + "\n\n")
		sb.WriteString("Original Text:\n")
		sb.WriteString(page.Original + "\n\n")
		fmt.Fprintf(&sb, "%s Translation:\n", types.LanguageName(targetLang))
		sb.WriteString(page.Translated + "\n\n")
		sb.WriteString(reportRule + "\n\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.NewAppError(types.ErrArtifact, "cannot create report directory", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return types.NewAppError(types.ErrArtifact, "cannot write text report", err)
	}

	logger.Info("translation text report written",
		logger.String("path", path),
		logger.Int("bytes", sb.Len()))
	return nil
}

// BuildStatusReport 生成用户可见的状态报告
func BuildStatusReport(result *Result) string {
	status := "Completed"
	switch {
	case result.Cancelled:
		status = "Cancelled (partial)"
	case result.Partial():
		status = "Completed with partial failures"
	}

	var sb strings.Builder
	sb.WriteString("PDF Translation Report\n")
	sb.WriteString(reportRule[:40] + "\n")
	fmt.Fprintf(&sb, "Status: %s\n", status)
	fmt.Fprintf(&sb, "Pages processed: %d of %d\n", len(result.TranslatedPages), result.SourcePages)
	fmt.Fprintf(&sb, "Output file: %s\n", filepath.Base(result.ArtifactPath))
	fmt.Fprintf(&sb, "Provider: %s\n", result.Provider)
	fmt.Fprintf(&sb, "Partial failures: %d chunk(s), %d page(s)\n", result.PartialFailures, result.FailedPages)
	sb.WriteString(reportRule[:40] + "\n")

	if len(result.Pages) > 0 {
		sb.WriteString("\nPage outcomes:\n")
		for _, p := range result.Pages {
			fmt.Fprintf(&sb, "  page %d: %s", p.Number, p.Outcome)
			if p.FailedChunks > 0 {
				fmt.Fprintf(&sb, " (%d/%d chunks untranslated)", p.FailedChunks, p.Chunks)
			}
			if len(p.Unresolved) > 0 {
				fmt.Fprintf(&sb, " unresolved markers: %s", strings.Join(p.Unresolved, ", "))
			}
			if len(p.MissingTerms) > 0 {
				fmt.Fprintf(&sb, " missing terms: %s", strings.Join(p.MissingTerms, ", "))
			}
			sb.WriteString("\n")
		}
	}

	if len(result.TranslatedPages) > 0 {
		sb.WriteString("\nTranslation Preview:\n")
		for i := 0; i < len(result.TranslatedPages) && i < previewPages; i++ {
			number := i + 1
			if i < len(result.PageNumbers) {
				number = result.PageNumbers[i]
			}
			fmt.Fprintf(&sb, "\nPage %d:\n", number)
			if i < len(result.OriginalPages) {
				fmt.Fprintf(&sb, "Original: %s\n", truncateRunes(result.OriginalPages[i], previewMaxRunes))
			}
			fmt.Fprintf(&sb, "Translation: %s\n", truncateRunes(result.TranslatedPages[i], previewMaxRunes))
			sb.WriteString(reportRule[:40] + "\n")
		}
	}

	fmt.Fprintf(&sb, "\nComplete translation saved to: %s", result.ArtifactPath)
	return sb.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
