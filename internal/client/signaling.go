package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	apperrors "pairlink/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrBackpressure is returned when the outbound queue is full.
var ErrBackpressure = errors.New("signaling send queue full")

const sendQueueSize = 32

// SignalingClient is the WebSocket connection to the relay. A write
// pump serializes outbound events, a read pump delivers inbound events
// on Events() until the connection dies, at which point the channel is
// closed.
type SignalingClient struct {
	conn   *websocket.Conn
	send   chan domain.Event
	events chan domain.Event
	logger *zap.Logger

	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// DialSignaling connects to the relay. The handshake must complete
// within the timeout or the dial fails.
func DialSignaling(ctx context.Context, url string, handshakeTimeout time.Duration, logger *zap.Logger) (*SignalingClient, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apperrors.NewTransportError("failed to connect to signaling server", err)
	}

	c := &SignalingClient{
		conn:         conn,
		send:         make(chan domain.Event, sendQueueSize),
		events:       make(chan domain.Event, sendQueueSize),
		logger:       logger,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	logger.Info("connected to signaling server", zap.String("url", url))
	return c, nil
}

// Send queues an event for delivery. Fails fast when the queue is full
// rather than blocking the caller behind a slow socket.
func (c *SignalingClient) Send(event domain.Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.NewTransportError("signaling connection closed", nil)
	}
	c.mu.Unlock()

	select {
	case c.send <- event:
		return nil
	default:
		return ErrBackpressure
	}
}

// Events returns the inbound event stream. Closed when the connection
// is lost or Close is called.
func (c *SignalingClient) Events() <-chan domain.Event {
	return c.events
}

func (c *SignalingClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.conn.Close()
}

func (c *SignalingClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Warn("signaling write failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

func (c *SignalingClient) readPump() {
	defer close(c.events)
	for {
		var event domain.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("signaling read failed", zap.Error(err))
				c.Close()
			}
			return
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}
