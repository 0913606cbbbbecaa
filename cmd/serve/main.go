package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"exoplanet-classifier/internal/cfg"
	"exoplanet-classifier/internal/metrics"
	"exoplanet-classifier/internal/ml"
	"exoplanet-classifier/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	var (
		artifactPath = flag.String("model", c.ArtifactPath, "Path to the model artifact")
		port         = flag.Int("port", c.ServerPort, "HTTP port for the prediction API")
		retention    = flag.Duration("retention", 30*24*time.Hour, "How long logged predictions are kept (0 keeps everything)")
		logLevel     = flag.String("log-level", c.LogLevel, "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	// The model is loaded exactly once; a missing or corrupt artifact is fatal.
	predictor, err := ml.LoadPredictor(*artifactPath, mw)
	if err != nil {
		log.Fatal().Err(err).Str("path", *artifactPath).Msg("failed to load model, run the trainer first")
	}

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}
	var predictionLog ml.PredictionLogger
	if store != nil && c.LogPredictions {
		predictionLog = store
	}

	// Metrics share the API port unless a separate one is configured.
	var gatherer prometheus.Gatherer
	if c.MetricsPort == 0 || c.MetricsPort == *port {
		gatherer = prometheus.DefaultGatherer
	} else {
		startMetricsServer(ctx, c.MetricsPort)
	}

	server := ml.NewModelServer(predictor, ml.ServerConfig{
		Port:           *port,
		MaxRequestBody: c.MaxRequestBody,
		RequestTimeout: c.RequestTimeout,
		LogPredictions: c.LogPredictions,
	}, gatherer, predictionLog)

	var wg sync.WaitGroup
	startModelAgeUpdater(ctx, &wg, predictor, mw)
	if store != nil && *retention > 0 {
		startPredictionPruner(ctx, &wg, store, *retention)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("model server failed")
		}
		cancel()
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown model server")
	}
	wg.Wait()
	log.Info().Msg("shutdown complete")
}

// initializeStorage opens the prediction log if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
			return nil
		}
		return store
	}
	return nil
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, port int) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func startModelAgeUpdater(ctx context.Context, wg *sync.WaitGroup, p *ml.Predictor, mw *metrics.MetricsWrapper) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mw.ModelAgeSet(p.ModelAge().Seconds())
			}
		}
	}()
}

func startPredictionPruner(ctx context.Context, wg *sync.WaitGroup, store *storage.Store, retention time.Duration) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.PrunePredictions(time.Now().Add(-retention))
				if err != nil {
					log.Warn().Err(err).Msg("failed to prune prediction log")
					continue
				}
				if removed > 0 {
					log.Info().Int("removed", removed).Dur("retention", retention).Msg("Pruned prediction log")
				}
			}
		}
	}()
}
