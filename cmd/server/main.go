package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reversus-game/reversus-server-go/internal/config"
	"github.com/reversus-game/reversus-server-go/internal/game"
	"github.com/reversus-game/reversus-server-go/internal/history"
	"github.com/reversus-game/reversus-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Reversus server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	recorder, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		logger.Fatal("failed to open match history", zap.Error(err))
	}
	defer recorder.Close()

	engine := game.NewEngine(logger)
	engine.SetResultRecorder(recorder)
	engine.SetMaxMatches(cfg.Server.MaxMatches)
	if cfg.Server.ReplayDir != "" {
		if err := os.MkdirAll(cfg.Server.ReplayDir, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		engine.SetReplayRecorder(game.NewReplayRecorder(logger, cfg.Server.ReplayDir))
		logger.Info("replay capture enabled", zap.String("dir", cfg.Server.ReplayDir))
	}

	hub := server.NewHub(engine, cfg.Server.TurnTimeout, logger)
	logger.Info("match hub initialized",
		zap.Duration("turn_timeout", cfg.Server.TurnTimeout),
		zap.Int("max_matches", cfg.Server.MaxMatches),
	)

	grpcServer := server.NewGRPCServer(hub, server.GRPCOptions{
		MaxConcurrentStreams: cfg.Server.GRPC.MaxConcurrentStreams,
	}, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	ws := server.NewWebSocketServer(hub, cfg.Rules.GameRules(), cfg.Server.MaxMessageBytes, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.WebSocket.Address))
		if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Reversus server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("history_driver", cfg.History.Driver),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown", zap.Error(err))
	}
	hub.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()

	logger.Info("Reversus server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
