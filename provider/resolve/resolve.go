// Package resolve creates chat providers from provider-agnostic configuration.
package resolve

import (
	"fmt"

	"github.com/nevindra/catalyst"
	"github.com/nevindra/catalyst/provider/azure"
	"github.com/nevindra/catalyst/provider/gemini"
)

// Config holds provider-agnostic configuration for creating a chat Provider.
type Config struct {
	Provider   string // "azure", "gemini"
	APIKey     string
	Model      string
	Endpoint   string // azure resource endpoint, e.g. https://myres.openai.azure.com
	Deployment string // azure deployment name; falls back to Model when empty
	APIVersion string // azure api-version override; empty uses the provider default

	// Common cross-provider options (nil = use provider default).
	Temperature *float64
	TopP        *float64
}

// Provider creates a catalyst.Provider from a provider-agnostic Config.
func Provider(cfg Config) (catalyst.Provider, error) {
	switch cfg.Provider {
	case "azure":
		return azureProvider(cfg), nil
	case "gemini":
		return geminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("resolve: unknown provider %q", cfg.Provider)
	}
}

func azureProvider(cfg Config) catalyst.Provider {
	deployment := cfg.Deployment
	if deployment == "" {
		deployment = cfg.Model
	}

	var provOpts []azure.ProviderOption
	if cfg.APIVersion != "" {
		provOpts = append(provOpts, azure.WithAPIVersion(cfg.APIVersion))
	}

	var reqOpts []azure.Option
	if cfg.Temperature != nil {
		reqOpts = append(reqOpts, azure.WithTemperature(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		reqOpts = append(reqOpts, azure.WithTopP(*cfg.TopP))
	}
	if len(reqOpts) > 0 {
		provOpts = append(provOpts, azure.WithOptions(reqOpts...))
	}

	return azure.NewProvider(cfg.APIKey, cfg.Endpoint, deployment, provOpts...)
}

func geminiProvider(cfg Config) catalyst.Provider {
	var opts []gemini.Option
	if cfg.Temperature != nil {
		opts = append(opts, gemini.WithTemperature(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		opts = append(opts, gemini.WithTopP(*cfg.TopP))
	}
	return gemini.New(cfg.APIKey, cfg.Model, opts...)
}
