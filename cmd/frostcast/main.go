package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"frostcast/internal/cfg"
	"frostcast/internal/features"
	"frostcast/internal/journal"
	"frostcast/internal/metrics"
	"frostcast/internal/ml"
	"frostcast/internal/predictor"
	"frostcast/internal/server"
	"frostcast/internal/timeseries"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	// Dataset and model artifacts load once, fatal on failure: the service
	// is unusable without them and the files are static, so no retry.
	store, err := timeseries.LoadCSV(c.CSVPath, timeseries.Schema{
		DateColumn:    c.DateColumn,
		DateLayout:    c.DateLayout,
		TargetColumn:  c.TargetColumn,
		PrecipColumns: c.PrecipColumns,
		TMaxColumns:   c.TMaxColumns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dataset load failed")
	}

	tempBundle, err := ml.LoadBundle(c.ModelsDir, "temperatura", mw)
	if err != nil {
		log.Fatal().Err(err).Msg("temperature model load failed")
	}
	frostBundle, err := ml.LoadBundle(c.ModelsDir, "helada", mw)
	if err != nil {
		log.Fatal().Err(err).Msg("frost model load failed")
	}

	jnl := initializeJournal(c)
	if jnl != nil {
		defer jnl.Close()
	}

	builder := features.NewBuilder(features.Schema{
		Target: c.TargetColumn,
		Precip: c.PrecipColumns,
		TMax:   c.TMaxColumns,
	})

	svcCfg := predictor.Config{
		Store:       store,
		Builder:     builder,
		TempBundle:  tempBundle,
		FrostBundle: frostBundle,
		Metrics:     mw,
	}
	if jnl != nil {
		svcCfg.Journal = jnl
	}
	svc, err := predictor.NewService(svcCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service construction failed")
	}

	startMetricsServer(ctx, c)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.ListenPort),
		Handler:           server.NewServer(svc).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Int("port", c.ListenPort).Msg("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown timed out")
	}
}

// initializeJournal opens the prediction journal if DATA_PATH is configured.
func initializeJournal(c cfg.Settings) *journal.Store {
	if c.DataPath == "" {
		return nil
	}
	jnl, err := journal.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("journal initialization failed, continuing without persistence")
		return nil
	}
	return jnl
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown blocks until a shutdown signal arrives or the context is
// canceled.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	cancel()
}
