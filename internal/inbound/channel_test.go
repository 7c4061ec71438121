package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cloo-solutions/bokai/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChannelSource_DrainsOnClose(t *testing.T) {
	src := NewChannelSource(4)
	ctx := context.Background()
	require.NoError(t, src.Push(ctx, domain.InboundMessage{ThreadID: "1"}))
	require.NoError(t, src.Push(ctx, domain.InboundMessage{ThreadID: "2"}))
	src.Close()

	var got []string
	err := src.Run(ctx, func(_ context.Context, msg domain.InboundMessage) error {
		got = append(got, msg.ThreadID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, got)
	assert.ErrorIs(t, src.Push(ctx, domain.InboundMessage{}), ErrSourceClosed)
}

func TestChannelSource_StopsOnContext(t *testing.T) {
	src := NewChannelSource(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(context.Context, domain.InboundMessage) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("source did not stop")
	}
}

func TestChannelPipeline_EndToEnd(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Answer", mock.Anything, mock.Anything).Return(&domain.GroundedResponse{Text: "Dostawa trwa 2 dni.", Confidence: 0.8}, nil)

	src := NewChannelSource(1)
	sink := NewChannelSink(1)
	d := NewDispatcher(answerer, sink, nil, nil, nil)

	require.NoError(t, src.Push(context.Background(), domain.InboundMessage{TenantID: testTenantID, ThreadID: "t", Message: "Ile trwa dostawa?"}))
	src.Close()
	require.NoError(t, src.Run(context.Background(), d.Handle))

	reply := <-sink.Replies
	assert.Equal(t, "Dostawa trwa 2 dni.", reply.Message)
	assert.Equal(t, "t", reply.ThreadID)
}
