package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// ModelOptions carries everything a provider constructor needs.
type ModelOptions struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
}

// NewModel instantiates the LLM client for the given provider.
func NewModel(ctx context.Context, opts ModelOptions) (llms.Model, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		return newOpenAIModel(opts)
	case ProviderGemini:
		return newGeminiModel(ctx, opts)
	case ProviderOllama:
		return newOllamaModel(opts)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}

func newOpenAIModel(opts ModelOptions) (llms.Model, error) {
	options := []openai.Option{
		openai.WithModel(opts.Model),
		openai.WithToken(opts.APIKey),
	}
	if opts.BaseURL != "" {
		options = append(options, openai.WithBaseURL(opts.BaseURL))
	}
	return openai.New(options...)
}

func newGeminiModel(ctx context.Context, opts ModelOptions) (llms.Model, error) {
	return googleai.New(ctx,
		googleai.WithAPIKey(opts.APIKey),
		googleai.WithDefaultModel(opts.Model),
	)
}

func newOllamaModel(opts ModelOptions) (llms.Model, error) {
	// Local models can take minutes on first load.
	httpClient := &http.Client{
		Timeout: 10 * time.Minute,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		},
	}
	serverURL := strings.TrimSuffix(opts.BaseURL, "/")
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	return ollama.New(
		ollama.WithModel(opts.Model),
		ollama.WithServerURL(serverURL),
		ollama.WithHTTPClient(httpClient),
	)
}
