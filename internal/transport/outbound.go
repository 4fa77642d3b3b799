// Package transport holds what the TCP and WebSocket transports share: envelope
// encoding and a bounded per-connection send queue.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/quyht-dev/tienlen/internal/protocol"
)

var (
	ErrQueueFull = errors.New("send queue full")
	ErrClosed    = errors.New("connection closed")
)

// Outbound implements app.Transport over a buffered queue of encoded envelopes.
// Enqueueing never blocks; a full queue drops the message.
type Outbound struct {
	queue chan []byte
	done  chan struct{}
	once  sync.Once
	close func() error
	log   *slog.Logger
}

// NewOutbound creates a queue of size n. closeFn tears down the underlying
// connection and runs at most once.
func NewOutbound(n int, closeFn func() error, logger *slog.Logger) *Outbound {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbound{
		queue: make(chan []byte, n),
		done:  make(chan struct{}),
		close: closeFn,
		log:   logger,
	}
}

// Queue is drained by the connection's writer goroutine.
func (o *Outbound) Queue() <-chan []byte { return o.queue }

// Done is closed once Close has been called.
func (o *Outbound) Done() <-chan struct{} { return o.done }

func (o *Outbound) enqueue(msgType string, requestID *string, payload any) error {
	data, err := protocol.Encode(msgType, requestID, payload)
	if err != nil {
		return err
	}
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.queue <- data:
		return nil
	default:
		o.log.Warn("dropping outbound message", "type", msgType)
		return ErrQueueFull
	}
}

func (o *Outbound) SendWelcome(playerID string) error {
	return o.enqueue(protocol.TypeWelcome, nil, protocol.WelcomePayload{PlayerID: playerID})
}

func (o *Outbound) SendState(state protocol.StatePayload) error {
	return o.enqueue(protocol.TypeState, nil, state)
}

func (o *Outbound) SendEvent(event protocol.EventPayload) error {
	return o.enqueue(protocol.TypeEvent, nil, event)
}

func (o *Outbound) SendError(requestID *string, code, message string) error {
	return o.enqueue(protocol.TypeError, requestID, protocol.ErrorPayload{Code: code, Message: message})
}

func (o *Outbound) SendReply(msgType string, requestID *string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return o.enqueue(msgType, requestID, nil)
	}
	return o.enqueue(msgType, requestID, payload)
}

func (o *Outbound) Close() error {
	var err error
	o.once.Do(func() {
		close(o.done)
		if o.close != nil {
			err = o.close()
		}
	})
	return err
}
