package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// Sentinel errors for registration and delivery.
var (
	ErrEmptyRunID         = errors.New("run id is required")
	ErrNilSubscriber      = errors.New("subscriber is nil")
	ErrTooManySubscribers = errors.New("too many subscribers")
	ErrSubscriberClosed   = errors.New("subscriber closed")
	ErrSubscriberFull     = errors.New("subscriber buffer full")
	ErrSubscriberPanic    = errors.New("subscriber panicked")
)

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, event flowrun.Event) error

// Send calls f.
func (f SubscriberFunc) Send(ctx context.Context, event flowrun.Event) error {
	return f(ctx, event)
}

// ChannelSubscriber buffers events in a channel. Send never blocks: a full
// buffer is a failed send, so a slow reader is dropped rather than stalling
// the run.
type ChannelSubscriber struct {
	mu     sync.Mutex
	ch     chan flowrun.Event
	closed bool
}

// NewChannelSubscriber creates a subscriber with the given buffer size.
// Default: 256.
func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSubscriber{ch: make(chan flowrun.Event, buffer)}
}

// Events returns the receive side. It is closed by Close.
func (c *ChannelSubscriber) Events() <-chan flowrun.Event {
	return c.ch
}

// Send implements Subscriber.
func (c *ChannelSubscriber) Send(_ context.Context, event flowrun.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSubscriberClosed
	}
	select {
	case c.ch <- event:
		return nil
	default:
		return ErrSubscriberFull
	}
}

// Close closes the channel. Further sends fail with ErrSubscriberClosed.
func (c *ChannelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// WriterSubscriber writes each event as one JSON line, the shape a
// websocket or log tail would receive.
type WriterSubscriber struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterSubscriber creates a subscriber writing to w.
func NewWriterSubscriber(w io.Writer) *WriterSubscriber {
	return &WriterSubscriber{enc: json.NewEncoder(w)}
}

// Send implements Subscriber. A write error fails the subscriber.
func (s *WriterSubscriber) Send(_ context.Context, event flowrun.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(event)
}
