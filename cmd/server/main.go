package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/app"
	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/inference/providers"
	"github.com/nvr-ai/go-classify/logger"
	"github.com/nvr-ai/go-classify/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// .env values only fill variables that are not already set
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	configPath, err := config.ParseConfigFlag(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, logCloser := logger.New(cfg.Log, cfg.Server.Debug)
	defer logCloser.Close()
	defer log.Sync() //nolint:errcheck

	components, err := app.NewEngine(cfg, log)
	if err != nil {
		log.Error("failed to load classifier", zap.Error(err))
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Warn("failed to close classifier", zap.Error(err))
		}
		if err := providers.ShutdownRuntime(); err != nil {
			log.Warn("failed to shut down onnxruntime", zap.Error(err))
		}
	}()

	store, err := app.NewStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to initialize storage", zap.Error(err))
		return err
	}

	srv := server.New(cfg.Server, components.Engine, store, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}

	m := components.Classifier.Metrics()
	log.Info("classifier statistics",
		zap.Int64("inferences", m.InferenceCount),
		zap.Int64("failures", m.FailureCount),
		zap.Float64("average_ms", m.AverageTimeMs),
	)
	return nil
}
