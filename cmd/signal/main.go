package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairlink/internal/core/services"
	httphandlers "pairlink/internal/handlers/http"
	"pairlink/internal/infrastructure/middleware"
	"pairlink/internal/infrastructure/monitoring"
	"pairlink/internal/infrastructure/reliability"
	"pairlink/internal/infrastructure/repositories"
	signalserver "pairlink/internal/infrastructure/signal"
	"pairlink/pkg/circuitbreaker"
	"pairlink/pkg/config"
	"pairlink/pkg/logger"
	"pairlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			ServiceName: "pairlink-signal",
			JaegerURL:   cfg.Tracing.JaegerURL,
			Enabled:     true,
		})
		if err != nil {
			zapLogger.Warn("tracing init failed", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to create repository factory", zap.Error(err))
	}
	defer repoFactory.Close()

	roomRepo := reliability.NewRoomRepositoryWrapper(
		repoFactory.CreateRoomRepository(),
		circuitbreaker.DefaultConfig(),
		zapLogger,
	)
	roomService := services.NewRoomService(roomRepo, zapLogger, cfg.Rooms.StaleAfter)

	wsServer := signalserver.NewWebSocketServer(roomService, zapLogger)
	wsServer.SetPingInterval(cfg.Signal.PingInterval)
	wsServer.SetPongTimeout(cfg.Signal.PongTimeout)
	wsServer.SetWriteTimeout(cfg.Signal.WriteTimeout)
	if cfg.RateLimiting.Enabled {
		wsServer.SetRateLimit(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
		)
		wsServer.SetMaxMessageSize(cfg.RateLimiting.WebSocket.MaxMessageSizeBytes)
	}

	if cfg.Monitoring.PrometheusEnabled {
		wsServer.SetMetrics(monitoring.NewPrometheusCollector())
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("room_directory", repoFactory.HealthCheck, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.ErrorHandlerMiddleware(zapLogger))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	statusHandler := httphandlers.NewStatusHandler(cfg, roomService, wsServer, healthChecker)
	statusHandler.SetupRoutes(router)

	router.GET("/ws", func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go wsServer.RunSweeper(sweepCtx, cfg.Rooms.SweepInterval)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("signaling server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		zapLogger.Fatal("server failed", zap.Error(err))
	case sig := <-quit:
		zapLogger.Info("shutting down", zap.String("signal", sig.String()))
	}

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
