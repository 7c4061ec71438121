package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/cloo-solutions/bokai/internal/domain"
)

type fakeLLM struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func TestOllama_Generate(t *testing.T) {
	llm := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "  Otwarte 9-17  ",
		GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": 8},
	}}}}
	o := &Ollama{llm: llm, model: "llama3.1:8b"}

	res, err := o.Generate(context.Background(), Request{
		Prompt:      "PYTANIE",
		System:      "system",
		MaxTokens:   500,
		Temperature: 0.3,
		Stop:        []string{"KONIEC"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Otwarte 9-17", res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 120, res.Usage.PromptTokens)
	assert.Equal(t, 8, res.Usage.CompletionTokens)

	require.Len(t, llm.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, llm.messages[1].Role)
	assert.Equal(t, 500, llm.opts.MaxTokens)
	assert.InDelta(t, 0.3, llm.opts.Temperature, 1e-9)
	assert.Equal(t, []string{"KONIEC"}, llm.opts.StopWords)
	assert.Equal(t, "ollama:llama3.1:8b", o.Name())
}

func TestOllama_MissingUsage(t *testing.T) {
	llm := &fakeLLM{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	res, err := (&Ollama{llm: llm}).Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Nil(t, res.Usage)
}

func TestOllama_Failures(t *testing.T) {
	_, err := (&Ollama{llm: &fakeLLM{err: errors.New("connection refused")}}).Generate(context.Background(), Request{Prompt: "p"})
	assert.True(t, domain.IsTransient(err))

	_, err = (&Ollama{llm: &fakeLLM{resp: &llms.ContentResponse{}}}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	_, err = (&Ollama{llm: &fakeLLM{err: context.Canceled}}).Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIChat_Generate(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Rabat wynosi 10%"}}},
		Usage:   openai.Usage{PromptTokens: 300, CompletionTokens: 20},
	}}
	c := &OpenAIChat{client: chat, model: "gpt-3.5-turbo"}

	res, err := c.Generate(context.Background(), Request{Prompt: "p", System: "s", MaxTokens: 500, Temperature: 0.3, Stop: []string{"PYTANIE:"}})

	require.NoError(t, err)
	assert.Equal(t, "Rabat wynosi 10%", res.Text)
	assert.Equal(t, &domain.TokenUsage{PromptTokens: 300, CompletionTokens: 20}, res.Usage)
	require.Len(t, chat.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, chat.req.Messages[0].Role)
	assert.Equal(t, "gpt-3.5-turbo", chat.req.Model)
	assert.Equal(t, 500, chat.req.MaxTokens)
	assert.Equal(t, []string{"PYTANIE:"}, chat.req.Stop)
}

func TestOpenAIChat_ClassifiesErrors(t *testing.T) {
	chat := &fakeChat{err: &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}}
	_, err := (&OpenAIChat{client: chat}).Generate(context.Background(), Request{Prompt: "p"})
	assert.True(t, domain.IsTransient(err))

	chat = &fakeChat{err: &openai.APIError{HTTPStatusCode: 400, Message: "bad"}}
	_, err = (&OpenAIChat{client: chat}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))

	_, err = (&OpenAIChat{client: &fakeChat{}}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
}

type fakeModels struct {
	model string
	cfg   *genai.GenerateContentConfig
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.cfg = cfg
	return f.resp, f.err
}

func TestGemini_Generate(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: "Dostawa trwa 2 dni"}}}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 50, CandidatesTokenCount: 6},
	}}
	g := &Gemini{models: models, model: DefaultGeminiModel}

	res, err := g.Generate(context.Background(), Request{Prompt: "p", System: "s", MaxTokens: 500, Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, "Dostawa trwa 2 dni", res.Text)
	assert.Equal(t, &domain.TokenUsage{PromptTokens: 50, CompletionTokens: 6}, res.Usage)
	assert.Equal(t, DefaultGeminiModel, models.model)
	assert.Equal(t, int32(500), models.cfg.MaxOutputTokens)
	require.NotNil(t, models.cfg.SystemInstruction)
}

func TestGemini_ClassifiesErrors(t *testing.T) {
	_, err := (&Gemini{models: &fakeModels{err: genai.APIError{Code: 503, Message: "overloaded"}}}).Generate(context.Background(), Request{Prompt: "p"})
	assert.True(t, domain.IsTransient(err))

	_, err = (&Gemini{models: &fakeModels{err: genai.APIError{Code: 403, Message: "denied"}}}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
}

func TestOllama_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	o := &Ollama{serverURL: srv.URL + "/"}
	require.NoError(t, o.Ping(context.Background()))

	down := &Ollama{serverURL: srv.URL + "/missing"}
	assert.Error(t, down.Ping(context.Background()))
}
