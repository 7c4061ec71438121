package embedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) ModelName() string { return "test-model" }

func TestWrap_ForwardsOnlyMisses(t *testing.T) {
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, []string{"a", "b"}).Return([][]float32{{1}, {2}}, nil).Once()
	next.On("Embed", mock.Anything, []string{"c"}).Return([][]float32{{3}}, nil).Once()

	e := Wrap(next, 16, time.Minute)

	first, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, first)

	second, err := e.Embed(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, second)

	next.AssertExpectations(t)
}

func TestWrap_ReturnsCopies(t *testing.T) {
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, []string{"a"}).Return([][]float32{{1, 2}}, nil).Once()

	e := Wrap(next, 16, time.Minute)
	v, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	v[0][0] = 99

	again, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again[0])
}

func TestWrap_ErrorsAreNotCached(t *testing.T) {
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, []string{"a"}).Return(nil, errors.New("rate limited")).Once()
	next.On("Embed", mock.Anything, []string{"a"}).Return([][]float32{{1}}, nil).Once()

	e := Wrap(next, 16, time.Minute)
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)

	v, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}}, v)
}

func TestWrap_DisabledReturnsInner(t *testing.T) {
	next := new(MockEmbedder)
	assert.Same(t, next, Wrap(next, 0, time.Minute))
	assert.Same(t, next, Wrap(next, 10, 0))
	assert.Equal(t, "test-model", Wrap(next, 10, time.Minute).ModelName())
}

func TestWrap_CollapsesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	next := new(MockEmbedder)
	next.On("Embed", mock.Anything, []string{"godziny otwarcia"}).
		Run(func(mock.Arguments) { <-release }).
		Return([][]float32{{0.5, 0.5}}, nil).Once()

	e := Wrap(next, 16, time.Minute)

	results := make([][][]float32, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.Embed(context.Background(), []string{"godziny otwarcia"})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	next.AssertNumberOfCalls(t, "Embed", 1)
	assert.Equal(t, results[0], results[1])
	results[0][0][0] = 9
	assert.Equal(t, float32(0.5), results[1][0][0])
}
