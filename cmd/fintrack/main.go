package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/feed"
	apphttp "fintrack/internal/http"
	"fintrack/internal/live"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: "server",
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var recordStore store.Store
	switch cfg.DataBackend {
	case "sqlite":
		s, err := store.NewSQLite(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		recordStore = s
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		recordStore = store.NewMemory()
		logger.Info("Initialized memory backend")
	}
	defer recordStore.Close()

	broker := feed.NewBroker()
	defer broker.Close()

	// Writes always notify the in-process broker; with AMQP configured they
	// are also relayed to out-of-process consumers such as the export worker.
	publisher := feed.Publisher(broker)
	if cfg.AMQPURL != "" {
		amqpClient, err := feed.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = feed.MultiPublisher{broker, amqpClient}
		logger.Info("AMQP change relay enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	tracker := services.NewTracker(recordStore, publisher)
	views := live.NewRegistry(recordStore, broker, tracker)
	defer views.Close()

	srv := apphttp.NewServer(":"+cfg.Port, tracker, views)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
