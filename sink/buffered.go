// Package sink provides per-connection event delivery buffers.
package sink

import (
	"log/slog"
	"sync"
	"time"

	"chat-hub/domain/event"
	"chat-hub/errors"
)

// BufferedSink decouples the coordinator from slow connections. Events are
// handed to a buffered channel drained by the transport's write loop; an
// event that cannot be buffered within the delivery timeout is dropped.
type BufferedSink struct {
	log     *slog.Logger
	events  chan event.Event
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

func NewBufferedSink(log *slog.Logger, size int, timeout time.Duration) *BufferedSink {
	return &BufferedSink{
		log:     log,
		events:  make(chan event.Event, size),
		timeout: timeout,
	}
}

// Events is drained by the connection's write loop.
func (s *BufferedSink) Events() <-chan event.Event {
	return s.events
}

func (s *BufferedSink) Consume(e event.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSlowConsumer
	}
	s.mu.Unlock()

	select {
	case s.events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.events <- e:
		return nil
	case <-timer.C:
		s.log.Debug("Delivery buffer full, dropping event", "event", e.EventName())
		return errors.ErrSlowConsumer
	}
}

// Close marks the sink as dead. The events channel is left open so a late
// Consume racing with Close never panics; the transport simply stops draining.
func (s *BufferedSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
