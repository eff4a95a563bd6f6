package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"plain", NewAppError(ErrRender, "render failed", nil), "render failed"},
		{"with details", NewAppErrorWithDetails(ErrConfig, "bad config", "missing key", nil), "bad config: missing key"},
		{"with page and cause", NewAppErrorWithPage(ErrProvider, "translate failed", 2, cause), "page 2: translate failed: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsCode(t *testing.T) {
	base := NewAppError(ErrExtraction, "no text", nil)
	wrapped := fmt.Errorf("run aborted: %w", base)

	assert.True(t, IsCode(wrapped, ErrExtraction))
	assert.False(t, IsCode(wrapped, ErrRender))
	assert.False(t, IsCode(errors.New("plain"), ErrExtraction))
	assert.ErrorIs(t, NewAppError(ErrProvider, "x", base), base)
}

func TestIsValidPhase(t *testing.T) {
	for _, p := range []ProcessPhase{PhaseIdle, PhaseExtracting, PhaseFiltering, PhaseTranslating, PhaseRendering, PhaseComplete, PhasePartial, PhaseError} {
		assert.True(t, IsValidPhase(p), p)
	}
	assert.False(t, IsValidPhase("compiling"))
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en", "en", false},
		{"zh-TW", "zh-TW", false},
		{"zh-tw", "zh-TW", false},
		{" ja ", "ja", false},
		{"sv", "", true},
		{"not a tag!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCode(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", LanguageName("en"))
	assert.NotEmpty(t, LanguageName("zh-TW"))
	assert.Equal(t, "!!", LanguageName("!!"))
}

func TestValidateRegion(t *testing.T) {
	assert.NoError(t, ValidateRegion("us-east-1"))
	assert.NoError(t, ValidateRegion("ap-southeast-1"))
	err := ValidateRegion("mars-north-1")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrInvalidInput))
}
