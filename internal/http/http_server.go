package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/codepractice.net/internal/core/ports/primary"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/core/services/submission"
	"gitlab.com/codepractice.net/internal/handlers"
	"gitlab.com/codepractice.net/internal/handlers/health"
	"gitlab.com/codepractice.net/internal/handlers/sessions"
	"gitlab.com/codepractice.net/internal/handlers/submissions"
)

type ServiceProvider struct {
	submissionService submission.ISubmissionService
	sessionService    session.ISessionService
	tokenVerifier     primary.TokenVerifier
	pushHandler       http.Handler
	listenerState     func() string
	registryStats     health.RegistryStats
}

func NewServiceProvider(
	submissionService submission.ISubmissionService,
	sessionService session.ISessionService,
	tokenVerifier primary.TokenVerifier,
	pushHandler http.Handler,
	listenerState func() string,
	registryStats health.RegistryStats,
) *ServiceProvider {
	return &ServiceProvider{
		submissionService: submissionService,
		sessionService:    sessionService,
		tokenVerifier:     tokenVerifier,
		pushHandler:       pushHandler,
		listenerState:     listenerState,
		registryStats:     registryStats,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	sp := s.ServiceProvider
	if sp.submissionService == nil || sp.sessionService == nil || sp.tokenVerifier == nil {
		return fmt.Errorf("http server: missing service dependencies")
	}

	r := mux.NewRouter()
	auth := handlers.New(sp.tokenVerifier, s.logger)
	submissions.NewSubmissionHandler(sp.submissionService, s.logger).RegisterRoutes(r, auth)
	sessions.NewSessionHandler(sp.sessionService, s.logger).RegisterRoutes(r)

	listenerState := sp.listenerState
	if listenerState == nil {
		listenerState = func() string { return "UNKNOWN" }
	}
	if sp.registryStats != nil {
		health.NewHandler(s.ServiceName, listenerState, sp.registryStats).RegisterRoutes(r)
	}

	if sp.pushHandler != nil {
		r.Handle("/ws", sp.pushHandler).Methods("GET")
	}
	s.router = r
	return nil
}

// Handler returns the routed handler, nil before Init
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. A listen failure is reported on the
// returned channel instead of exiting the process.
func (s *Server) Start(ctx context.Context) <-chan error {
	// Set up server
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.router,
		// no WriteTimeout: upgraded WebSockets outlive any fixed write window
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}
	return nil
}
