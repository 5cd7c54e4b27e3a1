package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CartMateCo/grocery-service/config"
	"github.com/CartMateCo/grocery-service/internal/infra/server"
	"github.com/CartMateCo/grocery-service/pkg/logger"
)

func main() {
	mainContext := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defaultLogger := logger.NewLogger(&cfg)

	var loggerProvider interface{ Shutdown(context.Context) error }
	if cfg.OtlpEndpoint != "" {
		observableLogger, provider, err := logger.NewObservableLogger(&cfg)
		if err != nil {
			slog.Error("failed to initialize observable logger, falling back to local",
				slog.String("error", err.Error()))
		} else {
			defaultLogger = observableLogger
			loggerProvider = provider
		}
	}
	slog.SetDefault(defaultLogger)

	srv := server.New(mainContext, &cfg, defaultLogger)
	if srv == nil {
		os.Exit(1)
	}
	if loggerProvider != nil {
		srv.SetLoggerProvider(loggerProvider)
	}

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	srv.Shutdown()
}
