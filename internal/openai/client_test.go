package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// MockEmbeddingAPI is a mock for the embeddings endpoint
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		out[i][0] = float32(i)
	}
	return out
}

func testClient(api EmbeddingAPI) *Client {
	return newClient(api, Config{EmbeddingDimensions: 4, BatchSize: 2, RetryDelay: time.Millisecond})
}

func TestClient_Embed_Batches(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)

	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"a1", "b2"}).Return(vectors(2, 4), nil).Once()
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"c3", "d4"}).Return(vectors(2, 4), nil).Once()
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"e5"}).Return(vectors(1, 4), nil).Once()

	got, err := client.Embed(context.Background(), []string{"a1", "b2", "c3", "d4", "e5"})

	require.NoError(t, err)
	assert.Len(t, got, 5)
	mockAPI.AssertExpectations(t)
}

func TestClient_Embed_RetriesTransientErrors(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)

	transient := &domain.ProviderError{Provider: "openai", StatusCode: 429, Transient: true, Err: errors.New("rate limited")}
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"hello"}).Return(nil, transient).Once()
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"hello"}).Return(vectors(1, 4), nil).Once()

	got, err := client.Embed(context.Background(), []string{"hello"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 2)
}

func TestClient_Embed_DoesNotRetryPermanentErrors(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)

	permanent := &domain.ProviderError{Provider: "openai", StatusCode: 400, Err: errors.New("bad input")}
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"hello"}).Return(nil, permanent)

	_, err := client.Embed(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.False(t, pe.Transient)
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 1)
}

func TestClient_Embed_GivesUpAfterMaxRetries(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)

	transient := &domain.ProviderError{Provider: "openai", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, transient)

	_, err := client.Embed(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	mockAPI.AssertNumberOfCalls(t, "CreateEmbeddings", 3)
}

func TestClient_Embed_EmptyText(t *testing.T) {
	client := testClient(new(MockEmbeddingAPI))

	_, err := client.Embed(context.Background(), []string{"ok", "  "})
	assert.Equal(t, ErrEmptyText, err)

	got, err := client.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_Embed_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"x"}).Return(vectors(1, 3), nil)

	_, err := client.Embed(context.Background(), []string{"x"})
	assert.Equal(t, ErrWrongDimensions, err)
}

func TestClient_Embed_CancelledContext(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestClient_GenerateEmbedding(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := testClient(mockAPI)
	mockAPI.On("CreateEmbeddings", mock.Anything, []string{"Go"}).Return([][]float32{{1, 2, 3, 4}}, nil)

	got, err := client.GenerateEmbedding(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)

	_, err = client.GenerateEmbedding(context.Background(), "")
	assert.Equal(t, ErrEmptyText, err)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, string(openai.SmallEmbedding3), client.ModelName())
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
}

func TestOpenAIAdapter_CreateEmbeddings_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{2, 2}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 1}},
			},
		})
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter("key", srv.URL, "")
	got, err := adapter.CreateEmbeddings(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, got)
}

func TestOpenAIAdapter_CreateEmbeddings_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test_error"}}`))
			}))
			defer srv.Close()

			adapter := NewOpenAIAdapter("key", srv.URL, "")
			_, err := adapter.CreateEmbeddings(context.Background(), []string{"a"})

			var pe *domain.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.transient, pe.Transient)
		})
	}
}

func TestClassifyError_NetworkAndCancel(t *testing.T) {
	assert.True(t, domain.IsTransient(ClassifyError("openai", errors.New("dial tcp: connection refused"))))
	assert.ErrorIs(t, ClassifyError("openai", context.Canceled), context.Canceled)
	assert.False(t, domain.IsTransient(ClassifyError("openai", context.Canceled)))
	assert.Nil(t, ClassifyError("openai", nil))
}
