package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"modelgate/internal/cfg"
	"modelgate/internal/metrics"
	"modelgate/internal/serve"
	"modelgate/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		modelPath  = flag.String("model", "", "Model artifact path (overrides config)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()
	setupLogging(*logLevel)

	c := cfg.Load(*configPath)
	if *modelPath != "" {
		c.System.ModelPath = *modelPath
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	predictor := serve.NewWithMetrics(c.System.ModelPath, mw)
	if !predictor.Loaded() {
		log.Warn().Str("model_path", c.System.ModelPath).Msg("model artifact unavailable, serving in degraded mode")
	}

	server := serve.NewServer(predictor, store, c.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	waitForShutdown(server, errCh)
}

func setupLogging(logLevel string) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeStorage opens the prediction audit store when DATA_PATH is
// configured. The server runs without it on failure.
func initializeStorage(c cfg.Config) *storage.Store {
	if c.System.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.System.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without audit log")
		return nil
	}
	return store
}

func waitForShutdown(server *serve.Server, errCh chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	log.Info().Msg("server stopped")
}
