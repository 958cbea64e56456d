package ai

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/v0xg/autoqa/internal/model"
)

// OpenAIProvider implements the Provider interface using OpenAI
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider. OPENAI_BASE_URL points
// it at a compatible endpoint.
func NewOpenAIProvider(model string) (*OpenAIProvider, error) {
	apiKey := os.Getenv("AUTOQA_OPENAI_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("AUTOQA_OPENAI_KEY or OPENAI_API_KEY environment variable required")
	}

	config := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		config.BaseURL = base
	}
	return newOpenAIProvider(openai.NewClientWithConfig(config), model), nil
}

func newOpenAIProvider(client *openai.Client, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		client: client,
		model:  model,
	}
}

// GenerateTests asks the model for test cases covering the application map
func (p *OpenAIProvider) GenerateTests(ctx context.Context, app *model.ApplicationMap, maxTests int) ([]model.TestCase, error) {
	return generate(ctx, "OpenAI", app, maxTests, func(ctx context.Context, userPrompt string) (string, error) {
		resp, err := p.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: systemPrompt,
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: userPrompt,
					},
				},
				MaxTokens: 4096,
			},
		)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}
