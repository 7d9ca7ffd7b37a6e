// Package ws serves the push channel over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/push"
)

// Server upgrades HTTP requests and runs one read loop per connection
type Server struct {
	cfg            *config.PushCfg
	sessionService session.ISessionService
	handlers       map[string]primary.EventHandler
	logger         primary.Logger
	upgrader       websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*Conn
}

func NewServer(
	cfg *config.PushCfg,
	sessionService session.ISessionService,
	handlers map[string]primary.EventHandler,
	logger primary.Logger,
) *Server {
	s := &Server{
		cfg:            cfg,
		sessionService: sessionService,
		handlers:       handlers,
		logger:         logger.With("transport", "websocket"),
		conns:          make(map[string]*Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(uuid.NewString(), wsConn, s.cfg.WriteTimeout)
	s.track(conn)
	defer s.untrack(conn)
	s.serve(conn)
}

func (s *Server) track(conn *Conn) {
	s.mu.Lock()
	s.conns[conn.ID()] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(conn *Conn) {
	s.mu.Lock()
	delete(s.conns, conn.ID())
	s.mu.Unlock()
}

// Shutdown closes every open WebSocket, joined or not
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Len returns the number of open WebSockets
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) serve(conn *Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()
	defer s.sessionService.Disconnect(context.Background(), conn.ID())

	log := s.logger.With("connectionId", conn.ID())
	log.Info("Client connected", "remote", conn.ws.RemoteAddr().String())

	if s.cfg.MaxMessageBytes > 0 {
		conn.ws.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	if s.cfg.JoinTimeout > 0 {
		_ = conn.ws.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout))
	}

	if err := conn.Send(ctx, push.EventConnected, push.ConnectedPayload(conn.ID())); err != nil {
		log.Warn("Failed to greet client", "error", err)
		return
	}

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("Read failed", "error", err)
			}
			log.Info("Client disconnected")
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			if err := conn.Send(ctx, push.EventError, push.ErrorPayload(push.CodeInvalidPayload, "invalid frame")); err != nil {
				return
			}
			continue
		}

		handler, ok := s.handlers[frame.Event]
		if !ok {
			log.Warn("Unknown event", "event", frame.Event)
			if err := conn.Send(ctx, push.EventError, push.ErrorPayload(push.CodeUnknownEvent, "unknown event: "+frame.Event)); err != nil {
				return
			}
			continue
		}

		if err := handler.HandleEvent(ctx, conn, frame.Data); err != nil {
			log.Error("Error handling event", "event", frame.Event, "error", err)
			return
		}

		// After the first successful join, remove the timeout
		if frame.Event == push.EventJoin && s.cfg.JoinTimeout > 0 && s.sessionService.Joined(conn.ID()) {
			_ = conn.ws.SetReadDeadline(time.Time{})
		}
	}
}
