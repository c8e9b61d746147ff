package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client outbox full")
)

// client is the broadcast.Conn handed to a lobby. Send never blocks the
// lobby goroutine: a client that cannot keep up is cut off.
type client struct {
	out     chan []byte
	closed  chan struct{}
	once    sync.Once
	dropped atomic.Bool
}

func newClient(size int) *client {
	return &client{
		out:    make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

func (c *client) Send(b []byte) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	default:
		c.dropped.Store(true)
		c.Close()
		return ErrSlowConsumer
	}
}

func (c *client) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// writeLoop drains the outbox onto conn until the client closes or a
// write fails.
func (c *client) writeLoop(ctx context.Context, conn *websocket.Conn, timeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			if c.dropped.Load() {
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
				return ErrSlowConsumer
			}
			return nil
		case b := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
