// Package llm adapts chat model backends to the translator.TranslationProvider
// contract: Claude on Amazon Bedrock through the anthropic SDK and
// OpenAI-compatible endpoints through eino.
package llm

import (
	"fmt"
	"strings"

	"pdf-translator/internal/types"
)

// buildSystemPrompt 构建翻译系统提示词
func buildSystemPrompt(sourceLang, targetLang string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional technical translator. Translate the user's text from %s to %s.\n",
		types.LanguageName(sourceLang), types.LanguageName(targetLang))
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Output only the translation, without explanations or notes.\n")
	sb.WriteString("2. Tokens of the form XPT0001X (letters followed by four digits and X) are placeholders. Copy them exactly, unchanged and unspaced.\n")
	sb.WriteString("3. Keep line breaks, numbers, URLs and product names as they are.\n")
	sb.WriteString("4. Do not add years, dates or facts that are not in the source.\n")
	if targetLang == "zh-TW" {
		sb.WriteString("5. Use Traditional Chinese characters and Taiwan terminology.\n")
	}
	return sb.String()
}

// extractTranslation trims wrapper text some models add around the answer.
func extractTranslation(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") && len(content) >= 6 {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		if i := strings.IndexByte(content, '\n'); i >= 0 && !strings.ContainsAny(content[:i], " \t") {
			content = content[i+1:]
		}
		content = strings.TrimSpace(content)
	}
	return content
}
