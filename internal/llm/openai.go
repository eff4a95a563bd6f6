package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/translator"
)

// ProviderOpenAI is the provider name reported in ProviderErrors.
const ProviderOpenAI = "openai"

// OpenAIProvider translates with an OpenAI-compatible chat model through eino.
type OpenAIProvider struct {
	chatModel model.BaseChatModel
	model     string
}

// NewOpenAIProvider creates the eino chat model and wraps it as a provider.
// An empty baseURL uses the library default.
func NewOpenAIProvider(ctx context.Context, apiKey, baseURL, modelName string) (*OpenAIProvider, error) {
	chatModelConfig := &openai.ChatModelConfig{
		Model:  modelName,
		APIKey: apiKey,
	}
	if baseURL != "" {
		chatModelConfig.BaseURL = baseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	logger.Debug("openai chat model created",
		logger.String("model", modelName),
		logger.String("baseURL", baseURL))

	return NewOpenAIProviderWithModel(chatModel, modelName), nil
}

// NewOpenAIProviderWithModel wraps an existing eino chat model.
func NewOpenAIProviderWithModel(chatModel model.BaseChatModel, modelName string) *OpenAIProvider {
	return &OpenAIProvider{chatModel: chatModel, model: modelName}
}

// Translate implements translator.TranslationProvider.
func (p *OpenAIProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	response, err := p.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(sourceLang, targetLang)),
		schema.UserMessage(text),
	})
	if err != nil {
		return "", translator.NewProviderError(ProviderOpenAI, statusFromMessage(err), err)
	}
	if response == nil {
		return "", translator.NewProviderError(ProviderOpenAI, 0, fmt.Errorf("nil response from model %s", p.model))
	}

	result := extractTranslation(response.Content)
	if result == "" {
		return "", translator.NewProviderError(ProviderOpenAI, 0, fmt.Errorf("empty response from model %s", p.model))
	}
	return result, nil
}

// statusFromMessage recovers the HTTP status the OpenAI client embeds in its
// error text ("status code: 429").
func statusFromMessage(err error) int {
	msg := err.Error()
	for _, marker := range []string{"status code: ", "status code ", "status: "} {
		i := strings.Index(msg, marker)
		if i < 0 {
			continue
		}
		var code int
		if _, scanErr := fmt.Sscanf(msg[i+len(marker):], "%d", &code); scanErr == nil && code >= 100 && code < 600 {
			return code
		}
	}
	return 0
}
