package generation

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/bokai/internal/domain"
	bokopenai "github.com/cloo-solutions/bokai/internal/openai"
)

const DefaultRemoteModel = openai.GPT3Dot5Turbo

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIChat is the remote backend served by the chat completions API.
type OpenAIChat struct {
	client chatCompleter
	model  string
}

// NewOpenAIChat creates a chat backend. baseURL is optional.
func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	if model == "" {
		model = DefaultRemoteModel
	}
	return &OpenAIChat{
		client: openai.NewClientWithConfig(bokopenai.ClientConfig(apiKey, baseURL)),
		model:  model,
	}
}

func (c *OpenAIChat) Name() string {
	return "openai:" + c.model
}

func (c *OpenAIChat) Generate(ctx context.Context, req Request) (*Result, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stop:        req.Stop,
	})
	if err != nil {
		return nil, bokopenai.ClassifyError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: "openai", Err: errors.New("no choices returned")}
	}

	var usage *domain.TokenUsage
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		usage = &domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}

	return &Result{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: usage,
	}, nil
}
