package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"notesaver/internal/app"
	"notesaver/internal/config"
	"notesaver/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// --- Wiring ---
	a, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize app", zap.Error(err))
	}

	// --- Start HTTP Server ---
	zlog.Info("starting server",
		zap.String("addr", cfg.AppPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("events", cfg.RabbitMQURL != ""),
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Fiber.Listen(cfg.AppPort)
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		zlog.Error("server stopped", zap.Error(err))
	}

	if err := a.Fiber.Shutdown(); err != nil {
		zlog.Error("error during fiber shutdown", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		zlog.Error("error releasing resources", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
}
