package connectionmanager

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/domain"
	"gitlab.com/codepractice.net/internal/static/errs"
	"gitlab.com/codepractice.net/internal/tcp/defs"
)

// ConnectionManager tracks every open TCP push connection, joined or not
type ConnectionManager struct {
	Connections map[string]*Conn
	ConnMutex   sync.RWMutex
	Logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		Connections: make(map[string]*Conn),
		Logger:      logger,
	}
}

// Add tracks a connection
func (cm *ConnectionManager) Add(conn *Conn) {
	cm.ConnMutex.Lock()
	cm.Connections[conn.ID()] = conn
	cm.ConnMutex.Unlock()
}

// Remove stops tracking a connection when it is closed
func (cm *ConnectionManager) Remove(connectionID string) {
	cm.ConnMutex.Lock()
	delete(cm.Connections, connectionID)
	cm.ConnMutex.Unlock()
}

// GetConnection returns the connection with the given id
func (cm *ConnectionManager) GetConnection(connectionID string) (*Conn, bool) {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()

	conn, exists := cm.Connections[connectionID]
	return conn, exists
}

func (cm *ConnectionManager) Len() int {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()
	return len(cm.Connections)
}

// CloseAll closes every tracked connection
func (cm *ConnectionManager) CloseAll() {
	cm.ConnMutex.RLock()
	conns := make([]*Conn, 0, len(cm.Connections))
	for _, conn := range cm.Connections {
		conns = append(conns, conn)
	}
	cm.ConnMutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			cm.Logger.Error("Failed to close connection", "connectionId", conn.ID(), "error", err)
		}
	}
}

var _ primary.PushConn = (*Conn)(nil)

// Conn is a push connection speaking the framed binary protocol
type Conn struct {
	id           string
	netConn      net.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewConn(id string, netConn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           id,
		netConn:      netConn,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Transport() domain.Transport {
	return domain.TransportTCP
}

// Send writes one frame for the event
func (c *Conn) Send(ctx context.Context, event string, payload []byte) error {
	msgType, ok := defs.MessageType(event)
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrUnknownEvent, event)
	}

	select {
	case <-c.closed:
		return errs.ErrConnClosed
	default:
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
	if err := c.netConn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return SendMessage(c.netConn, msgType, payload)
}

func (c *Conn) Close() error {
	err := errs.ErrConnClosed
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.netConn.Close()
	})
	return err
}

// SendMessage writes one frame: magic, type, reserved byte, payload length, payload
func SendMessage(conn io.Writer, msgType byte, payload []byte) error {
	frame := make([]byte, defs.HeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], defs.MagicNumber)
	frame[2] = msgType
	frame[3] = 0 // Reserved
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[defs.HeaderSize:], payload)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ErrFrameTooLarge is returned by ReadMessage when a frame exceeds the limit
var ErrFrameTooLarge = errors.New("frame too large")

// ReadMessage reads one frame. maxPayload 0 disables the size check.
func ReadMessage(conn io.Reader, maxPayload int64) (byte, []byte, error) {
	header := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, err
	}

	magic := binary.BigEndian.Uint16(header[0:2])
	msgType := header[2]
	payloadLen := binary.BigEndian.Uint32(header[4:8])

	if magic != defs.MagicNumber {
		return 0, nil, fmt.Errorf("invalid magic number: %x", magic)
	}
	if maxPayload > 0 && int64(payloadLen) > maxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return msgType, payload, nil
}
