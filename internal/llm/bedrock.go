package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/translator"
)

const (
	// ProviderBedrock is the provider name reported in ProviderErrors.
	ProviderBedrock = "bedrock"

	defaultBedrockMaxTokens = 4096
)

// MessageClient is the subset of the anthropic Messages API used here.
// *anthropic.MessageService satisfies it.
type MessageClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// NewBedrockMessageClient creates an anthropic client that signs requests for
// Amazon Bedrock in the given region using the default AWS credential chain.
func NewBedrockMessageClient(ctx context.Context, region string) MessageClient {
	client := anthropic.NewClient(
		bedrock.WithLoadDefaultConfig(ctx, config.WithRegion(region)),
	)
	logger.Debug("bedrock client created", logger.String("region", region))
	return &client.Messages
}

// Complete sends a single user message with an optional system prompt and
// returns the concatenated text blocks of the reply.
func Complete(ctx context.Context, client MessageClient, modelID, system, prompt string, maxTokens int64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(0),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := client.New(ctx, params)
	if err != nil {
		return "", err
	}
	return messageText(resp), nil
}

func messageText(resp *anthropic.Message) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// StatusCode returns the HTTP status of an anthropic API error, or 0.
func StatusCode(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// BedrockProvider translates with Claude on Amazon Bedrock.
type BedrockProvider struct {
	client    MessageClient
	model     string
	maxTokens int64
}

// NewBedrockProvider creates a BedrockProvider for the given model ID.
func NewBedrockProvider(client MessageClient, modelID string) *BedrockProvider {
	return &BedrockProvider{
		client:    client,
		model:     modelID,
		maxTokens: defaultBedrockMaxTokens,
	}
}

// Translate implements translator.TranslationProvider.
func (p *BedrockProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	content, err := Complete(ctx, p.client, p.model, buildSystemPrompt(sourceLang, targetLang), text, p.maxTokens)
	if err != nil {
		return "", translator.NewProviderError(ProviderBedrock, StatusCode(err), err)
	}

	result := extractTranslation(content)
	if result == "" {
		return "", translator.NewProviderError(ProviderBedrock, 0, fmt.Errorf("empty response from model %s", p.model))
	}
	return result, nil
}
