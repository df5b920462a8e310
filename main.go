package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelgen/api"
	"reelgen/app"
	"reelgen/config"
	"reelgen/jobs"
	reelKafka "reelgen/kafka"
	"reelgen/logging"
	sharedKafka "reelgen/shared/kafka"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("reelgen stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	registry := jobs.NewRegistry(a.Orchestrator, jobs.Options{
		Retention: cfg.RunRetention,
		Logger:    logger.Named("jobs"),
	})
	if a.Archiver != nil {
		registry.OnComplete(a.Archiver.Hook)
	}
	if err := registry.StartJanitor(config.JanitorSchedule); err != nil {
		return err
	}

	var consumer *sharedKafka.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		c, closeProducer, err := startKafka(ctx, cfg, a, logger.Named("kafka"))
		if err != nil {
			return err
		}
		defer closeProducer()
		consumer = c
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(api.NewServer(registry, a.Selector, logger.Named("api"), 0)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server",
			zap.String("addr", srv.Addr),
			zap.Strings("endpoints", []string{
				"GET  /health",
				"GET  /api/categories",
				"POST /api/categories/:category/reset",
				"POST /api/reels",
				"GET  /api/reels",
				"GET  /api/reels/:id",
				"GET  /api/reels/:id/video",
				"GET  /api/reels/:id/captions",
			}),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("kafka consumer close", zap.Error(err))
		}
	}
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Warn("runs still active at shutdown", zap.Error(err))
	}
	return nil
}

// startKafka consumes reel requests and reports completions. The returned
// func closes the producer.
func startKafka(ctx context.Context, cfg config.Config, a *app.App, logger *zap.Logger) (*sharedKafka.Consumer, func(), error) {
	producer, err := sharedKafka.NewProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, nil, err
	}
	closeProducer := func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close", zap.Error(err))
		}
	}

	handler := &reelKafka.Handler{
		Runner:          a.Orchestrator,
		Publisher:       producer,
		CompletionTopic: cfg.KafkaCompletedTopic,
		Logger:          logger,
	}
	// Only set when configured; a nil pointer in an interface is not nil.
	if a.Archiver != nil {
		handler.Archiver = a.Archiver
	}
	if a.YouTube != nil {
		handler.Uploader = a.YouTube
	}

	consumer, err := sharedKafka.NewConsumer(sharedKafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaRequestTopic,
		GroupID: cfg.KafkaGroupID,
		Handler: handler.MessageHandler(),
		Logger:  logger,
	})
	if err != nil {
		closeProducer()
		return nil, nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		closeProducer()
		return nil, nil, err
	}
	return consumer, closeProducer, nil
}
