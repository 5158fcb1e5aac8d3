package llm

import "context"

// openRouterProvider implements Provider for OpenRouter, an aggregation
// layer that routes one API key across many upstream model hosts over
// the OpenAI-compatible format. Model names carry a vendor namespace,
// e.g. "meta-llama/llama-3.3-70b-instruct".
//
// API key: set via config, OPENROUTER_API_KEY env var, or the server's
// SRSMAP_CHAT_API_KEY env var.
type openRouterProvider struct {
	base openAICompatClient
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *openRouterProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
