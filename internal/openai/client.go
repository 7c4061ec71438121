package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/bokai/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the vector size produced by the default model
	DefaultEmbeddingDimensions = 1536
	// DefaultBatchSize is the number of inputs sent per embeddings request
	DefaultBatchSize = 64

	providerName = "openai"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("embedding API key not set")
)

// EmbeddingAPI creates one embedding per input, in input order
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is a batched, retrying embedding provider
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	batchSize  int
	timeout    time.Duration
	retry      retrypolicy.RetryPolicy[[][]float32]
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIAdapter creates an adapter for the OpenAI embeddings endpoint.
// baseURL may point at any OpenAI-compatible server.
func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(ClientConfig(apiKey, baseURL)),
		model:  model,
	}
}

// ClientConfig builds a go-openai configuration with an optional base URL.
func ClientConfig(apiKey, baseURL string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return cfg
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, ClassifyError(providerName, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// ClassifyError wraps a go-openai error into a domain.ProviderError so
// callers can tell rate limits and outages from permanent rejections.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Transient:  domain.TransientStatus(apiErr.HTTPStatusCode),
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.ProviderError{
			Provider:   provider,
			StatusCode: reqErr.HTTPStatusCode,
			Transient:  domain.TransientStatus(reqErr.HTTPStatusCode),
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	// Timeouts and connection failures carry no status.
	return &domain.ProviderError{Provider: provider, Transient: true, Err: err}
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	BatchSize           int
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return newClient(NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel), cfg)
}

func newClient(api EmbeddingAPI, cfg Config) *Client {
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	model := string(cfg.EmbeddingModel)
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}

	return &Client{
		api:        api,
		model:      model,
		dimensions: cfg.EmbeddingDimensions,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		retry: retrypolicy.NewBuilder[[][]float32]().
			WithBackoff(cfg.RetryDelay, 10*cfg.RetryDelay).
			WithMaxRetries(cfg.MaxRetries).
			HandleIf(func(_ [][]float32, err error) bool {
				return domain.IsTransient(err)
			}).
			ReturnLastFailure().
			Build(),
	}
}

// ModelName returns the embedding model identifier
func (c *Client) ModelName() string {
	return c.model
}

// Dimensions returns the vector size produced by the model
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Embed returns one vector per text, sending at most batchSize texts per
// request. Each request carries its own timeout and transient failures are
// retried with backoff.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := failsafe.With(c.retry).WithContext(ctx).Get(func() ([][]float32, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.api.CreateEmbeddings(callCtx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("failed to create embeddings: expected %d vectors, got %d", len(batch), len(vectors))
		}
		for _, v := range vectors {
			if len(v) != c.dimensions {
				return nil, ErrWrongDimensions
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
