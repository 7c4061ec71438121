package inbound

import (
	"context"
	"sync"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// ChannelSource is an in-process source for embedding and tests. Messages
// whose handler fails are dropped.
type ChannelSource struct {
	ch       chan domain.InboundMessage
	done     chan struct{}
	closeOne sync.Once
}

func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		ch:   make(chan domain.InboundMessage, buffer),
		done: make(chan struct{}),
	}
}

// Push enqueues msg, waiting for buffer space.
func (s *ChannelSource) Push(ctx context.Context, msg domain.InboundMessage) error {
	select {
	case <-s.done:
		return ErrSourceClosed
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return ErrSourceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops Run once the already queued messages are handled.
func (s *ChannelSource) Close() {
	s.closeOne.Do(func() { close(s.done) })
}

func (s *ChannelSource) Run(ctx context.Context, handle MessageHandler[domain.InboundMessage]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.ch:
			_ = handle(ctx, msg)
		case <-s.done:
			for {
				select {
				case msg := <-s.ch:
					_ = handle(ctx, msg)
				default:
					return nil
				}
			}
		}
	}
}

// ChannelSink collects replies on a channel.
type ChannelSink struct {
	Replies chan domain.OutboundReply
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{Replies: make(chan domain.OutboundReply, buffer)}
}

func (s *ChannelSink) Deliver(ctx context.Context, reply domain.OutboundReply) error {
	select {
	case s.Replies <- reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
