// Package types defines core data types and enums for the PDF translator.
package types

import (
	"errors"
	"fmt"
)

// Config 应用配置
type Config struct {
	// Translation provider: "openai" (eino chat model) or "bedrock" (Claude on Amazon Bedrock)
	Provider       string `json:"provider"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIBaseURL  string `json:"openai_base_url"` // OpenAI 兼容 API 的 Base URL
	OpenAIModel    string `json:"openai_model"`
	BedrockModel   string `json:"bedrock_model"` // Bedrock model ID used for translation
	FilterModel    string `json:"filter_model"`  // Bedrock model ID used for boilerplate filtering
	EnableAIFilter bool   `json:"enable_ai_filter"`

	Region     string `json:"region"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`

	MaxChunkLength    int     `json:"max_chunk_length"` // provider request limit in runes
	Concurrency       int     `json:"concurrency"`      // pages translated in parallel
	MaxInFlight       int     `json:"max_in_flight"`    // concurrent outbound calls
	RequestsPerSecond float64 `json:"requests_per_second"`
	MaxRetries        int     `json:"max_retries"`

	CachePath     string `json:"cache_path"`
	FontPath      string `json:"font_path"`
	WorkDirectory string `json:"work_directory"`
	LogFilePath   string `json:"log_file_path"`
	LogLevel      string `json:"log_level"`
}

// ProcessPhase 处理阶段枚举
type ProcessPhase string

const (
	PhaseIdle        ProcessPhase = "idle"
	PhaseExtracting  ProcessPhase = "extracting"
	PhaseFiltering   ProcessPhase = "filtering"
	PhaseTranslating ProcessPhase = "translating"
	PhaseRendering   ProcessPhase = "rendering"
	PhaseComplete    ProcessPhase = "complete"
	PhasePartial     ProcessPhase = "partial"
	PhaseError       ProcessPhase = "error"
)

// IsValidPhase checks if the given phase is a known ProcessPhase
func IsValidPhase(phase ProcessPhase) bool {
	switch phase {
	case PhaseIdle, PhaseExtracting, PhaseFiltering, PhaseTranslating,
		PhaseRendering, PhaseComplete, PhasePartial, PhaseError:
		return true
	default:
		return false
	}
}

// Status 处理状态
type Status struct {
	Phase          ProcessPhase `json:"phase"`
	Progress       int          `json:"progress"` // 0-100
	Message        string       `json:"message"`
	TotalPages     int          `json:"total_pages"`
	CompletedPages int          `json:"completed_pages"`
	Error          string       `json:"error,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrExtraction         ErrorCode = "EXTRACTION_FAILED"
	ErrFilter             ErrorCode = "FILTER_FAILED"
	ErrProvider           ErrorCode = "PROVIDER_FAILED"
	ErrProtectionResidual ErrorCode = "PROTECTION_RESIDUAL"
	ErrRender             ErrorCode = "RENDER_FAILED"
	ErrArtifact           ErrorCode = "ARTIFACT_FAILED"
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrConfig             ErrorCode = "CONFIG_ERROR"
	ErrCache              ErrorCode = "CACHE_ERROR"
	ErrCancelled          ErrorCode = "CANCELLED"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Page    int       `json:"page,omitempty"` // 1-based page number, 0 when not page specific
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewAppErrorWithPage creates a new AppError tied to a 1-based page number
func NewAppErrorWithPage(code ErrorCode, message string, page int, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

// IsCode reports whether err, or any error it wraps, is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
