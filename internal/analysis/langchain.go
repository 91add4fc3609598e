package analysis

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docvoice/internal/config"
)

// LangChainProvider completes prompts through any langchaingo chat model.
type LangChainProvider struct {
	llm llms.Model
}

// NewLangChainProvider wraps an existing langchaingo model.
func NewLangChainProvider(llm llms.Model) *LangChainProvider {
	return &LangChainProvider{llm: llm}
}

// NewAzureOpenAI builds a provider against an Azure OpenAI deployment.
func NewAzureOpenAI(cfg config.AnalysisConfig) (*LangChainProvider, error) {
	if cfg.AzureAPIKey == "" || cfg.AzureEndpoint == "" || cfg.AzureDeployment == "" {
		return nil, fmt.Errorf("azure openai key, endpoint and deployment are required")
	}
	llm, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithBaseURL(cfg.AzureEndpoint),
		openai.WithToken(cfg.AzureAPIKey),
		openai.WithModel(cfg.AzureDeployment),
		openai.WithAPIVersion(cfg.AzureAPIVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("create azure openai model: %w", err)
	}
	return NewLangChainProvider(llm), nil
}

// Complete sends the system and user prompts as one chat exchange.
func (p *LangChainProvider) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := p.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
