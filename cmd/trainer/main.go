package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"modelgate/internal/cfg"
	"modelgate/internal/metrics"
	"modelgate/internal/storage"
	"modelgate/internal/train"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		modelPath  = flag.String("model", "", "Model output path (overrides config)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		waitScrape = flag.Duration("metrics-wait", 0, "Keep the metrics endpoint up this long after the run")
	)
	flag.Parse()

	_ = godotenv.Load()
	setupLogging(*logLevel)

	c := cfg.Load(*configPath)
	if *modelPath != "" {
		c.System.ModelPath = *modelPath
	}

	m := metrics.New()
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	path, result, err := train.New(c).Run()
	m.TrainingRuns.Inc()
	recordTrainingRun(store, path, result, err)

	if err == nil {
		m.ModelAccuracy.Set(result.Accuracy)
		m.ModelPrecision.Set(result.Precision)
		m.ModelRecall.Set(result.Recall)
		m.ModelF1.Set(result.F1Score)
	}

	var gateErr *train.GateError
	switch {
	case err == nil:
		log.Info().Str("model_path", path).Float64("accuracy", result.Accuracy).Msg("training run succeeded")
	case errors.As(err, &gateErr):
		m.GateFailures.Inc()
		log.Error().Err(err).Int("violations", len(gateErr.Result.Violations)).Msg("model rejected by quality gates")
	default:
		log.Error().Err(err).Msg("training run failed")
	}

	if *waitScrape > 0 {
		serveMetricsOnce(c, *waitScrape)
	}

	if err != nil {
		os.Exit(1)
	}
}

func setupLogging(logLevel string) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeStorage opens the run history store when DATA_PATH is
// configured. A storage failure never blocks training.
func initializeStorage(c cfg.Config) *storage.Store {
	if c.System.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.System.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without run history")
		return nil
	}
	return store
}

func recordTrainingRun(store *storage.Store, path string, m train.Metrics, runErr error) {
	if store == nil {
		return
	}
	record := storage.TrainingRunRecord{
		Timestamp:   time.Now().UTC(),
		ModelPath:   path,
		GatesPassed: runErr == nil,
		Metrics: map[string]float64{
			"accuracy":  m.Accuracy,
			"precision": m.Precision,
			"recall":    m.Recall,
			"f1_score":  m.F1Score,
		},
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	if err := store.StoreTrainingRun(record); err != nil {
		log.Warn().Err(err).Msg("failed to record training run")
	}
}

// serveMetricsOnce exposes /metrics for a bounded window so a scraper
// can collect the run counters from this one-shot process.
func serveMetricsOnce(c cfg.Config, window time.Duration) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		time.Sleep(window)
		_ = server.Close()
	}()

	log.Info().Str("addr", server.Addr).Dur("window", window).Msg("holding metrics endpoint open")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
