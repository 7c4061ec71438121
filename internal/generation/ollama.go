package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const (
	DefaultLocalModel = "llama3.1:8b"
	DefaultLocalURL   = "http://localhost:11434"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Ollama is the local backend. It costs nothing per call.
type Ollama struct {
	llm       contentGenerator
	model     string
	serverURL string
	http      *http.Client
}

// NewOllama connects to an Ollama server.
func NewOllama(serverURL, model string) (*Ollama, error) {
	if model == "" {
		model = DefaultLocalModel
	}
	if serverURL == "" {
		serverURL = DefaultLocalURL
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Ollama{llm: llm, model: model, serverURL: serverURL, http: http.DefaultClient}, nil
}

// Ping checks that the server answers its model listing.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(o.serverURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	client := o.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func (o *Ollama) Name() string {
	return "ollama:" + o.model
}

func (o *Ollama) Generate(ctx context.Context, req Request) (*Result, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(req.Stop))
	}

	resp, err := o.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Ollama runs beside the service, so any failure is treated as an
		// outage worth retrying.
		return nil, &domain.ProviderError{Provider: "ollama", Transient: true, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: "ollama", Err: errors.New("empty response")}
	}

	choice := resp.Choices[0]
	return &Result{
		Text:  strings.TrimSpace(choice.Content),
		Usage: usageFromInfo(choice.GenerationInfo),
	}, nil
}

func usageFromInfo(info map[string]any) *domain.TokenUsage {
	prompt, okP := intFromAny(info["PromptTokens"])
	completion, okC := intFromAny(info["CompletionTokens"])
	if !okP && !okC {
		return nil
	}
	return &domain.TokenUsage{PromptTokens: prompt, CompletionTokens: completion}
}

func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
