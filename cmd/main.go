package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gitlab.com/codepractice.net/internal/adapter/crypto"
	"gitlab.com/codepractice.net/internal/adapter/logging"
	"gitlab.com/codepractice.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/codepractice.net/internal/adapter/rabbitmq"
	"gitlab.com/codepractice.net/internal/adapter/redis/sessionport"
	"gitlab.com/codepractice.net/internal/config"
	"gitlab.com/codepractice.net/internal/core/services/session"
	"gitlab.com/codepractice.net/internal/core/services/submission"
	logger2 "gitlab.com/codepractice.net/internal/global/logger"
	http2 "gitlab.com/codepractice.net/internal/http"
	"gitlab.com/codepractice.net/internal/push"
	pushhandlers "gitlab.com/codepractice.net/internal/push/handlers"
	"gitlab.com/codepractice.net/internal/push/registry"
	"gitlab.com/codepractice.net/internal/push/ws"
	"gitlab.com/codepractice.net/internal/resultlistener"
	"gitlab.com/codepractice.net/internal/schedulerengine"
	"gitlab.com/codepractice.net/internal/tcp"
)

func main() {
	InitReader()
	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sysCfg := config.NewSystemConfig()
	logger2.SetLevel(sysCfg.LogLevel)
	logger := logging.NewZapLoggerWithLevel(sysCfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting submission notifier service", "service", sysCfg.HTTPConfig.ServiceName)

	db, err := setupDatabase(sysCfg.PostgresConfig)
	if err != nil {
		logger.Error("Failed to set up database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     sysCfg.RedisConfig.Url,
		Password: sysCfg.RedisConfig.Password,
		DB:       sysCfg.RedisConfig.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// presence is best effort; routing works without it
		logger.Warn("Redis unreachable, presence will be degraded", "addr", sysCfg.RedisConfig.Url, "error", err)
	}

	// SECONDARY PORTS
	submissionRepo := submissionrepository.New(db, logger, sysCfg.PostgresConfig.Schema)
	presenceRepo := sessionport.NewSessionRepository(redisClient, sysCfg.RedisConfig.SessionTTL, logger)
	dispatcher := rabbitmq.NewDispatcher(sysCfg.RabbitMQConfig, sysCfg.DispatchCfg, logger)

	//primary ports
	jwtProvider := crypto.NewJWTService(sysCfg.JwtConfig)

	//services
	reg := registry.New()
	sessionSvc := session.NewSessionService(reg, presenceRepo, logger)
	submissionSvc := submission.NewSubmissionService(submissionRepo, dispatcher, logger)

	broadcaster := push.NewBroadcaster(reg, sysCfg.PushCfg.WriteTimeout, logger)
	listener := resultlistener.New(sysCfg.RabbitMQConfig, sysCfg.ListenerCfg, broadcaster, logger)

	//servers
	eventHandlers := pushhandlers.NewEventHandlers(sessionSvc, logger)
	wsServer := ws.NewServer(sysCfg.PushCfg, sessionSvc, eventHandlers, logger)
	tcpServer := tcp.NewTCPServer(sysCfg.PushCfg, sessionSvc, eventHandlers, logger)

	serviceProvider := http2.NewServiceProvider(
		submissionSvc,
		sessionSvc,
		jwtProvider,
		wsServer,
		func() string { return listener.State().String() },
		reg,
	)
	httpServer := http2.NewServer(sysCfg.HTTPConfig.Port, sysCfg.HTTPConfig.ServiceName, *serviceProvider, logger)
	if err := httpServer.Init(); err != nil {
		logger.Error("Failed to init http server", "error", err)
		os.Exit(1)
	}

	if err := tcpServer.Start(); err != nil {
		logger.Error("Failed to start tcp server", "error", err)
		os.Exit(1)
	}
	httpErr := httpServer.Start(ctx)

	var wg sync.WaitGroup
	listenerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil {
			listenerErr <- err
		}
	}()

	scheduler := schedulerengine.NewSchedulerEngine(sysCfg.RedisConfig, sessionSvc, logger)
	scheduler.StartPresenceRefreshEngine(ctx)
	if !sysCfg.DebugMode {
		scheduler.StartPresenceCleanupEngine(ctx)
	}

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		logger.Error("HTTP server stopped", "error", err)
	case err := <-listenerErr:
		logger.Error("Result listener stopped", "error", err)
	}
	stop()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sysCfg.HTTPConfig.ShutdownTimeout)
	defer cancel()

	if err := tcpServer.Stop(shutdownCtx); err != nil {
		logger.Warn("TCP server did not stop cleanly", "error", err)
	}
	wsServer.Shutdown()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP server did not stop cleanly", "error", err)
	}
	if errs := reg.CloseAll(); len(errs) > 0 {
		logger.Debug("Closed push connections with errors", "count", len(errs))
	}
	if err := dispatcher.Close(); err != nil {
		logger.Warn("Failed to close dispatcher", "error", err)
	}
	wg.Wait()
	scheduler.Wait()

	logger.Info("successfully shutdown server")
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitReader loads <env>.env where env is the first argument, default local.
// A missing file is not fatal; the process environment still applies.
func InitReader() {
	environment := "local"
	if len(os.Args) >= 2 && os.Args[1] != "" {
		environment = os.Args[1]
	}

	err := godotenv.Load(environment + ".env")
	if errors.Is(err, os.ErrNotExist) {
		logger2.Warn("Env file not found, using process environment", "file", environment+".env")
		return
	}
	if err != nil {
		logger2.Error("Error loading env file", "file", environment+".env", "error", err)
		os.Exit(1)
	}
}
