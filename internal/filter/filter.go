// Package filter strips boilerplate such as copyright notices, page numbers
// and running headers from extracted page text before translation.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"pdf-translator/internal/llm"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

const (
	// MinFilterLength is the rune count below which text is returned unchanged.
	MinFilterLength = 10
	// MaxGrowthRatio bounds how much longer than its input a filtered page may be.
	MaxGrowthRatio = 1.2

	filterMaxTokens = 1000
)

// ContentFilter removes non-content boilerplate from page text.
// Clean is best effort and never fails.
type ContentFilter interface {
	Clean(ctx context.Context, raw string) string
}

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)©\s*\d{4}.*?All rights reserved\.?`),
	regexp.MustCompile(`(?is)Copyright.*?\d{4}.*?reserved\.?`),
	regexp.MustCompile(`(?is)© \d{4}, Amazon Web Services.*?reserved\.?`),
	regexp.MustCompile(`(?is)Amazon Web Services, Inc\. or its affiliates\. All rights reserved\.?`),
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\x{3000}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// RegexFilter removes known copyright boilerplate with regular expressions.
type RegexFilter struct{}

// NewRegexFilter creates a RegexFilter.
func NewRegexFilter() *RegexFilter {
	return &RegexFilter{}
}

// Clean implements ContentFilter.
func (f *RegexFilter) Clean(_ context.Context, raw string) string {
	text := raw
	for _, p := range boilerplatePatterns {
		text = p.ReplaceAllString(text, "")
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// BedrockFilter asks Claude on Amazon Bedrock to strip boilerplate and falls
// back to a RegexFilter when the call fails or the answer looks wrong.
type BedrockFilter struct {
	client   llm.MessageClient
	model    string
	throttle *translator.Throttle
	fallback ContentFilter
}

// NewBedrockFilter creates a BedrockFilter. throttle may be nil.
func NewBedrockFilter(client llm.MessageClient, modelID string, throttle *translator.Throttle) *BedrockFilter {
	return &BedrockFilter{
		client:   client,
		model:    modelID,
		throttle: throttle,
		fallback: NewRegexFilter(),
	}
}

// Clean implements ContentFilter.
func (f *BedrockFilter) Clean(ctx context.Context, raw string) string {
	inputLen := utf8.RuneCountInString(strings.TrimSpace(raw))
	if inputLen < MinFilterLength {
		return raw
	}

	var cleaned string
	err := f.throttle.Do(ctx, func() error {
		content, err := llm.Complete(ctx, f.client, f.model, "", buildFilterPrompt(raw), filterMaxTokens)
		cleaned = strings.TrimSpace(content)
		return err
	})
	if err != nil {
		filterErr := types.NewAppError(types.ErrFilter, "AI content filter failed", err)
		logger.Warn("falling back to regex filter", logger.Err(filterErr))
		return f.fallback.Clean(ctx, raw)
	}

	outLen := utf8.RuneCountInString(cleaned)
	if outLen > MinFilterLength && float64(outLen) < float64(inputLen)*MaxGrowthRatio {
		return cleaned
	}

	logger.Warn("AI filter output rejected, using regex filter",
		logger.Int("inputRunes", inputLen),
		logger.Int("outputRunes", outLen))
	return f.fallback.Clean(ctx, raw)
}

func buildFilterPrompt(raw string) string {
	return fmt.Sprintf(`Clean up the following text extracted from a PDF page.

Keep all core content. Remove:
- Copyright and legal notices
- Page numbers
- Headers and footers
- Company disclaimers
- Document metadata

Return only the cleaned content, without any explanation.

Text:
%s`, raw)
}
