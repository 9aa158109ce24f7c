package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"disease-predictor/internal/api"
	"disease-predictor/internal/artifact"
	"disease-predictor/internal/common/camunda"
	"disease-predictor/internal/common/config"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/common/metrics"
	"disease-predictor/internal/common/observability"
	"disease-predictor/internal/features"
	"disease-predictor/internal/inference"
	"disease-predictor/internal/model"
	predictrisk "disease-predictor/internal/workers/assessment/predict-risk"
)

// retryWithBackoff runs operation until it succeeds, maxRetries is reached or ctx ends.
func retryWithBackoff(ctx context.Context, operation func(context.Context) error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(ctx); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.WithError(err).Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "risk-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log := logger.NewZapAdapter(zapLog)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting risk server", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"store":       cfg.Store.Backend,
	})

	var obs *observability.Observability
	if cfg.Metrics.Enabled {
		obs, err = observability.New(observability.Options{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Tracing:        cfg.Metrics.Tracing,
		})
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("observability shutdown failed", nil)
			}
		}()
	}

	var store artifact.Backend
	err = retryWithBackoff(ctx, func(ctx context.Context) error {
		var openErr error
		store, openErr = artifact.Open(ctx, cfg.Store)
		return openErr
	}, 5, 2*time.Second, log, "Artifact store connection")
	if err != nil {
		return err
	}
	defer store.Close()

	bundle, err := loadBundle(ctx, cfg, store)
	if err != nil {
		log.WithError(err).Error("model artifacts could not be loaded", nil)
		return err
	}

	converter := features.NewConverter(nil)
	if missing := bundle.Unencoded(converter.Table()); len(missing) > 0 {
		log.Warn("schema features without a categorical mapping must be sent as numbers", map[string]interface{}{
			"features": missing,
		})
	}
	metrics.ModelInfo.WithLabelValues(bundle.Format, string(bundle.SchemaSource)).Set(float64(bundle.Schema.Len()))
	log.Info("model loaded", map[string]interface{}{
		"format":        bundle.Format,
		"schemaSize":    bundle.Schema.Len(),
		"schemaSource":  bundle.SchemaSource,
		"scaledColumns": bundle.ScalingColumns,
	})

	orch := inference.New(converter, bundle, log)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := api.NewRouter(api.NewHandler(orch, log, cfg.Server.MaxBatchRows), api.RouterOptions{
		Logger:        log,
		Observability: obs,
		MetricsPath:   metricsPath,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining requests", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, predictrisk.TaskType) {
		g.Go(func() error {
			return runWorker(gctx, cfg, orch, log)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error", nil)
		return err
	}
	log.Info("risk server stopped", nil)
	return nil
}

func loadBundle(ctx context.Context, cfg *config.Config, store artifact.Store) (*model.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Model.LoadTimeout))
	defer cancel()

	return model.LoadArtifacts(ctx, store, model.ArtifactNames{
		Classifier: cfg.Model.ClassifierArtifact,
		Scaler:     cfg.Model.ScalerArtifact,
		ColumnInfo: cfg.Model.ColumnInfoArtifact,
	})
}

// runWorker serves the predict-cognitive-risk job type until ctx is done.
func runWorker(ctx context.Context, cfg *config.Config, orch *inference.Orchestrator, log logger.Logger) error {
	var client *camunda.Client
	err := retryWithBackoff(ctx, func(ctx context.Context) error {
		var connErr error
		client, connErr = camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda))
		return connErr
	}, 5, 2*time.Second, log, "Zeebe connection")
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer client.Close()

	workerCfg := predictrisk.LoadConfig(cfg)
	w := camunda.NewWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      predictrisk.TaskType,
		MaxJobsActive: workerCfg.MaxJobsActive,
		Timeout:       workerCfg.Timeout,
	}, predictrisk.NewHandler(workerCfg, orch, log), log)

	<-ctx.Done()
	w.Stop()
	return nil
}
