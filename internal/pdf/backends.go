package pdf

import (
	"context"

	"pdf-translator/internal/config"
	"pdf-translator/internal/filter"
	"pdf-translator/internal/llm"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// Backends are the region scoped collaborators of one run.
type Backends struct {
	Name     string
	Provider translator.TranslationProvider
	Filter   filter.ContentFilter
}

// BackendFactory builds the backends for a region. The throttle is shared
// by the filter and the provider calls of the run.
type BackendFactory func(ctx context.Context, region string, throttle *translator.Throttle) (Backends, error)

// NewBackendFactory returns the factory for the configured provider.
func NewBackendFactory(cfg *types.Config) BackendFactory {
	return func(ctx context.Context, region string, throttle *translator.Throttle) (Backends, error) {
		var bedrock llm.MessageClient
		bedrockClient := func() llm.MessageClient {
			if bedrock == nil {
				bedrock = llm.NewBedrockMessageClient(ctx, region)
			}
			return bedrock
		}

		var b Backends
		switch cfg.Provider {
		case config.ProviderBedrock:
			b.Name = llm.ProviderBedrock
			b.Provider = llm.NewBedrockProvider(bedrockClient(), cfg.BedrockModel)
		case config.ProviderOpenAI, "":
			provider, err := llm.NewOpenAIProvider(ctx, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
			if err != nil {
				return Backends{}, types.NewAppError(types.ErrConfig, "cannot create OpenAI provider", err)
			}
			b.Name = llm.ProviderOpenAI
			b.Provider = provider
		default:
			return Backends{}, types.NewAppErrorWithDetails(types.ErrConfig, "unknown provider", cfg.Provider, nil)
		}

		if cfg.EnableAIFilter {
			b.Filter = filter.NewBedrockFilter(bedrockClient(), cfg.FilterModel, throttle)
		} else {
			b.Filter = filter.NewRegexFilter()
		}
		return b, nil
	}
}

// StaticBackends returns a factory that ignores the region.
func StaticBackends(b Backends) BackendFactory {
	return func(context.Context, string, *translator.Throttle) (Backends, error) {
		return b, nil
	}
}
