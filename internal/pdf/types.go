// Package pdf runs the document level pipeline: page text extraction,
// boilerplate filtering, page translation and rendering of the translated
// PDF or its plain-text report.
package pdf

import (
	"context"

	"pdf-translator/internal/translator"
)

// Default page size (A4 in points) used when a page has no readable MediaBox.
const (
	DefaultPageWidth  = 595.28
	DefaultPageHeight = 841.89
)

// PageInfo 页面尺寸信息
type PageInfo struct {
	Number int     `json:"number"` // 1-based
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RenderPage 需要渲染的页面
type RenderPage struct {
	Number     int    `json:"number"` // 1-based page number in the source document
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// PageTextExtractor returns the raw text of every page of a document.
type PageTextExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// DocumentRenderer writes a translated document next to its source.
type DocumentRenderer interface {
	Render(ctx context.Context, sourcePath string, pages []RenderPage, outputPath string) error
}

// Request describes one document translation.
type Request struct {
	SourcePath     string `json:"source_path"`
	TargetPath     string `json:"target_path"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
	Region         string `json:"region"`
	ProtectedTerms string `json:"protected_terms"`
}

// PageReport 单页翻译结果摘要
type PageReport struct {
	Number       int                    `json:"number"` // 1-based page number in the source document
	Outcome      translator.PageOutcome `json:"outcome"`
	Chunks       int                    `json:"chunks"`
	FailedChunks int                    `json:"failed_chunks"`
	Score        float64                `json:"score"`
	Unresolved   []string               `json:"unresolved,omitempty"`
	MissingTerms []string               `json:"missing_terms,omitempty"`
}

// Result 文档翻译结果
type Result struct {
	RunID           string       `json:"run_id"`
	SourcePages     int          `json:"source_pages"`
	PageNumbers     []int        `json:"page_numbers"`
	OriginalPages   []string     `json:"original_pages"`
	TranslatedPages []string     `json:"translated_pages"`
	Pages           []PageReport `json:"pages"`
	ArtifactPath    string       `json:"artifact_path"`
	RenderedPDF     bool         `json:"rendered_pdf"`
	Provider        string       `json:"provider"`
	PartialFailures int          `json:"partial_failures"`
	FailedPages     int          `json:"failed_pages"`
	Cancelled       bool         `json:"cancelled"`
	Report          string       `json:"report"`
}

// Partial reports whether any page or chunk fell back to its original text.
func (r *Result) Partial() bool {
	return r.PartialFailures > 0 || r.FailedPages > 0 || r.Cancelled
}
