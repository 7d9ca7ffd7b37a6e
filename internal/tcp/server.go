package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
	"gitlab.com/codepractice.net/internal/tcp/connectionmanager"
	"gitlab.com/codepractice.net/internal/tcp/defs"
)

// TCPServer serves the push channel to clients speaking the framed protocol
type TCPServer struct {
	address        string
	cfg            *config.PushCfg
	sessionService session.ISessionService
	logger         primary.Logger
	listener       net.Listener
	connectionMgr  *connectionmanager.ConnectionManager
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	handlers       map[byte]primary.EventHandler
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// NewTCPServer creates a new TCP server. eventHandlers is keyed by event
// name and shared with the other push transports.
func NewTCPServer(
	cfg *config.PushCfg,
	sessionService session.ISessionService,
	eventHandlers map[string]primary.EventHandler,
	logger primary.Logger,
	options ...TCPServerOption,
) *TCPServer {
	server := &TCPServer{
		address:        cfg.TCPAddress,
		cfg:            cfg,
		sessionService: sessionService,
		logger:         logger.With("transport", "tcp"),
		connectionMgr:  connectionmanager.NewConnectionManager(logger),
		stopCh:         make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	server.setupMessageHandlers(eventHandlers)

	return server
}

// setupMessageHandlers keys the event handlers by frame type
func (s *TCPServer) setupMessageHandlers(eventHandlers map[string]primary.EventHandler) {
	s.handlers = make(map[byte]primary.EventHandler, len(eventHandlers))
	for event, handler := range eventHandlers {
		msgType, ok := defs.MessageType(event)
		if !ok {
			s.logger.Warn("Event has no frame type", "event", event)
			continue
		}
		s.handlers[msgType] = handler
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.listener.Addr().String())

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the bound address once started
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines or ctx
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	// Close listener
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("Failed to close listener", "error", err)
		}
	}

	// Close all connections
	s.connectionMgr.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of open connections
func (s *TCPServer) Len() int {
	return s.connectionMgr.Len()
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
				continue
			}
		}

		// Handle connection in a goroutine
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection runs the read loop of one client
func (s *TCPServer) handleConnection(netConn net.Conn) {
	defer s.wg.Done()

	conn := connectionmanager.NewConn(uuid.NewString(), netConn, s.cfg.WriteTimeout)
	s.connectionMgr.Add(conn)
	select {
	case <-s.stopCh:
		// Stop already swept the connection manager
		s.connectionMgr.Remove(conn.ID())
		_ = conn.Close()
		return
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.connectionMgr.Remove(conn.ID())
	defer conn.Close()
	defer s.sessionService.Disconnect(context.Background(), conn.ID())

	log := s.logger.With("connectionId", conn.ID())
	log.Info("Client connected", "remote", netConn.RemoteAddr().String())

	// Set initial timeout for joining
	if s.cfg.JoinTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout))
	}

	if err := conn.Send(ctx, push.EventConnected, push.ConnectedPayload(conn.ID())); err != nil {
		log.Warn("Failed to greet client", "error", err)
		return
	}

	for {
		msgType, payload, err := connectionmanager.ReadMessage(netConn, s.cfg.MaxMessageBytes)
		if err != nil {
			if errors.Is(err, connectionmanager.ErrFrameTooLarge) {
				_ = conn.Send(ctx, push.EventError, push.ErrorPayload(push.CodeFrameTooLarge, err.Error()))
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("Read failed", "error", err)
			}
			log.Info("Client disconnected")
			return
		}

		// Find handler for message type
		handler, exists := s.handlers[msgType]
		if !exists {
			log.Warn("Unknown message type", "type", msgType)
			if err := conn.Send(ctx, push.EventError, push.ErrorPayload(push.CodeUnknownEvent, fmt.Sprintf("Unknown message type: %d", msgType))); err != nil {
				return
			}
			continue
		}

		if err := handler.HandleEvent(ctx, conn, payload); err != nil {
			event, _ := defs.EventName(msgType)
			log.Error("Error handling message", "event", event, "error", err)
			return
		}

		// After a successful join, remove timeout
		if msgType == defs.MsgJoin && s.cfg.JoinTimeout > 0 && s.sessionService.Joined(conn.ID()) {
			_ = netConn.SetReadDeadline(time.Time{})
		}
	}
}
