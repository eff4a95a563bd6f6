package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// SupportedLanguages lists the language codes accepted for source and target.
var SupportedLanguages = []string{"en", "zh", "zh-TW", "ja", "ko", "fr", "de", "es", "it", "pt", "ru"}

// SupportedRegions lists the AWS regions the cloud-backed collaborators may run in.
var SupportedRegions = []string{"us-east-1", "us-west-2", "eu-west-1", "ap-northeast-1", "ap-southeast-1"}

// NormalizeLanguage validates a language code and returns its canonical
// spelling from SupportedLanguages ("ZH-tw" -> "zh-TW").
func NormalizeLanguage(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", NewAppErrorWithDetails(ErrInvalidInput, "invalid language code", code, err)
	}
	for _, supported := range SupportedLanguages {
		if language.MustParse(supported) == tag {
			return supported, nil
		}
	}
	return "", NewAppErrorWithDetails(ErrInvalidInput, "unsupported language",
		fmt.Sprintf("%s (supported: %s)", code, strings.Join(SupportedLanguages, ", ")), nil)
}

// LanguageName returns the English display name of a language code,
// falling back to the code itself.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// ValidateRegion checks that region is one of SupportedRegions.
func ValidateRegion(region string) error {
	for _, r := range SupportedRegions {
		if r == region {
			return nil
		}
	}
	return NewAppErrorWithDetails(ErrInvalidInput, "unsupported region",
		fmt.Sprintf("%s (supported: %s)", region, strings.Join(SupportedRegions, ", ")), nil)
}
