package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/app"
	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		stdlog.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	if err := log.InitWithConfig(log.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.L(ctx)

	if cfg.Tracing.Enabled {
		tcfg := tracing.DefaultConfig()
		tcfg.ServiceName = cfg.AppName
		tcfg.Environment = cfg.Tracing.Environment
		tcfg.JaegerEndpoint = cfg.Tracing.JaegerEndpoint
		tcfg.SamplingRatio = cfg.Tracing.SamplingRatio
		shutdownTracing, err := tracing.Init(tcfg, logger)
		if err != nil {
			logger.Warn("Tracing disabled", zap.Error(err))
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Warn("Failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		logger.Error("Application stopped with error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// loadConfig reads the YAML file when present and falls back to the
// environment otherwise
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}
