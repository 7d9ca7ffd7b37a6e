// Package pushtest provides an in-memory primary.PushConn for tests.
package pushtest

import (
	"context"
	"errors"
	"sync"

	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

// Frame is one event sent to a connection
type Frame struct {
	Event   string
	Payload []byte
}

// Conn records every frame it is sent
type Conn struct {
	id string

	mu      sync.Mutex
	frames  []Frame
	closed  bool
	sendErr error
	block   bool
	sent    chan Frame
}

func NewConn(id string) *Conn {
	return &Conn{id: id, sent: make(chan Frame, 64)}
}

// FailWith makes every Send return err
func (c *Conn) FailWith(err error) *Conn {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
	return c
}

// Stall makes every Send block until its context is done
func (c *Conn) Stall() *Conn {
	c.mu.Lock()
	c.block = true
	c.mu.Unlock()
	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Transport() domain.Transport {
	return domain.TransportWebSocket
}

func (c *Conn) Send(ctx context.Context, event string, payload []byte) error {
	c.mu.Lock()
	closed, sendErr, block := c.closed, c.sendErr, c.block
	c.mu.Unlock()

	switch {
	case closed:
		return errs.ErrConnClosed
	case sendErr != nil:
		return sendErr
	case block:
		<-ctx.Done()
		return ctx.Err()
	}

	f := Frame{Event: event, Payload: append([]byte(nil), payload...)}
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
	select {
	case c.sent <- f:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("already closed")
	}
	c.closed = true
	return nil
}

// Frames returns everything sent so far
func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sent delivers frames as they are sent
func (c *Conn) Sent() <-chan Frame {
	return c.sent
}
