package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
)

var _ primary.PushConn = (*Conn)(nil)

// Frame is the JSON envelope of every WebSocket message
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is a push connection over a WebSocket. gorilla/websocket allows one
// concurrent writer, so writes are serialised.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           id,
		ws:           ws,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Transport() domain.Transport {
	return domain.TransportWebSocket
}

// Send writes one event frame. The write deadline is the earlier of the
// context deadline and the configured write timeout.
func (c *Conn) Send(ctx context.Context, event string, payload []byte) error {
	select {
	case <-c.closed:
		return errs.ErrConnClosed
	default:
	}

	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", event, err)
	}
	return nil
}

// encodeFrame wraps payload in the event envelope without re-encoding it,
// so clients receive the exact bytes the sender produced
func encodeFrame(event string, payload []byte) ([]byte, error) {
	name, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		frame := make([]byte, 0, len(name)+10)
		frame = append(frame, `{"event":`...)
		frame = append(frame, name...)
		return append(frame, '}'), nil
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("failed to marshal %s frame: payload is not valid JSON", event)
	}

	frame := make([]byte, 0, len(name)+len(payload)+18)
	frame = append(frame, `{"event":`...)
	frame = append(frame, name...)
	frame = append(frame, `,"data":`...)
	frame = append(frame, payload...)
	return append(frame, '}'), nil
}

// Close sends a close frame and closes the socket
func (c *Conn) Close() error {
	err := errs.ErrConnClosed
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
