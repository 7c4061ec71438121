// Package inbound connects marketplace channels to the answering pipeline.
// Adapters deliver customer messages and receive replies; they never call
// the pipeline directly.
package inbound

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by a source that has been shut down.
var ErrSourceClosed = errors.New("inbound source closed")

// MessageHandler processes one inbound message. A non-nil error asks the
// source to redeliver the message.
type MessageHandler[T any] func(ctx context.Context, msg T) error

// Source delivers inbound messages until ctx ends.
type Source[T any] interface {
	Run(ctx context.Context, handle MessageHandler[T]) error
}

// Sink delivers replies back to the channel.
type Sink[T any] interface {
	Deliver(ctx context.Context, reply T) error
}
