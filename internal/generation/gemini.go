package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is an alternative remote backend.
type Gemini struct {
	models contentModel
	model  string
}

// NewGemini creates a Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:   genai.Ptr(float32(req.Temperature)),
		StopSequences: req.Stop,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &domain.ProviderError{Provider: "gemini", Err: errors.New("empty response")}
	}

	var usage *domain.TokenUsage
	if resp.UsageMetadata != nil {
		usage = &domain.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return &Result{Text: text, Usage: usage}, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   "gemini",
			StatusCode: apiErr.Code,
			Transient:  domain.TransientStatus(apiErr.Code),
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.ProviderError{Provider: "gemini", Transient: true, Err: err}
}
