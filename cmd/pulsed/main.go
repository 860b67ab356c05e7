package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/logging"
	"github.com/pulselens/pulselens/internal/metricsrv"
	"github.com/pulselens/pulselens/internal/pipeline"
)

var configFile = flag.String("config", "", "Path to the configuration file (empty uses defaults and PULSELENS_* env vars)")

func main() {
	flag.Parse()
	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Flush buffered logs on exit
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded",
		"path", configPath,
		"channel_id", cfg.Source.ChannelID(),
		"log_level", cfg.Log.Level,
	)

	pipe, err := pipeline.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		sugar.Infow("Received signal, initiating shutdown...", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Addr != "" {
		srv := metricsrv.NewServer(cfg.Metrics.Addr, logger.Named("metricsrv"))
		go func() {
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				sugar.Errorw("Metrics server stopped unexpectedly", "error", err)
				cancel()
			}
		}()
	}

	sugar.Info("Starting ingestion pipeline...")
	runErr := pipe.Run(ctx)

	switch {
	case runErr == nil:
		sugar.Info("Pipeline shutdown gracefully.")
	case errors.Is(runErr, context.Canceled):
		sugar.Info("Pipeline cancelled (expected on shutdown).")
	default:
		logger.Error("Pipeline stopped unexpectedly", zap.Error(runErr))
		return runErr
	}

	sugar.Info("PulseLens finished.")
	return nil
}
