// Package app wires the reel pipeline from configuration. The API server and
// the one-shot CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"reelgen/backgrounds"
	"reelgen/common"
	"reelgen/config"
	"reelgen/engine"
	"reelgen/pipeline"
	"reelgen/publish"
	"reelgen/voice"

	"go.uber.org/zap"
)

// App holds the wired components.
type App struct {
	Orchestrator *pipeline.Orchestrator
	Selector     *backgrounds.Selector
	Engine       *engine.Handle

	// Optional; nil when not configured.
	S3       *common.S3
	Archiver *publish.S3Archiver
	YouTube  *publish.YouTube

	closers []io.Closer
	logger  *zap.Logger
}

// Build wires every component described by cfg. Optional integrations
// (S3, Redis, YouTube) are enabled only when configured.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	if cfg.S3Bucket != "" {
		s3c, err := common.NewS3(ctx, common.S3Config{
			Region:       cfg.S3Region,
			Profile:      cfg.S3Profile,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		a.S3 = s3c
		a.Archiver = publish.NewS3Archiver(s3c, cfg.S3Bucket, cfg.S3Prefix, logger.Named("archive"))
		logger.Info("s3 enabled", zap.String("bucket", cfg.S3Bucket), zap.String("prefix", cfg.S3Prefix))
	}

	catalog, source, err := a.loadCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for _, cat := range backgrounds.Categories() {
		logger.Info("background catalog", zap.String("category", string(cat)), zap.Int("clips", catalog.Size(cat)))
	}

	usage, err := a.usageStore(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Selector = backgrounds.NewSelector(catalog, usage)

	tts, err := voice.NewClient(voice.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
		BaseURL: cfg.ElevenLabsBaseURL,
		Timeout: cfg.VoiceTimeout,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engineLogger := logger.Named("engine")
	a.Engine = engine.NewHandle(func(ctx context.Context) (engine.Engine, error) {
		return engine.Open(ctx, engine.Options{Binary: cfg.FFmpegPath, Logger: engineLogger})
	})
	a.closers = append(a.closers, a.Engine)

	if cfg.YouTubeServiceAccount != "" {
		yt, err := publish.NewYouTube(ctx, cfg.YouTubeServiceAccount, logger.Named("youtube"))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.YouTube = yt
		logger.Info("youtube publishing enabled")
	}

	a.Orchestrator = pipeline.New(pipeline.Deps{
		Selector: a.Selector,
		Source:   source,
		Voice:    tts,
		Prober:   engine.NewFFprobe("", 0),
		Engine:   a.Engine,
	}, pipeline.Options{
		VoiceTimeout:  cfg.VoiceTimeout,
		EncodeTimeout: cfg.EncodeTimeout,
		Logger:        logger.Named("pipeline"),
	})
	return a, nil
}

// loadCatalog prefers S3 when a backgrounds prefix is configured, then a
// YAML manifest, then a directory scan.
func (a *App) loadCatalog(ctx context.Context, cfg config.Config) (backgrounds.Catalog, backgrounds.Source, error) {
	switch {
	case a.S3 != nil && cfg.S3BackgroundsPrefix != "":
		catalog, err := backgrounds.LoadCatalogS3(ctx, a.S3, cfg.S3Bucket, cfg.S3BackgroundsPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load background catalog from s3: %w", err)
		}
		return catalog, backgrounds.S3Source{Client: a.S3, Bucket: cfg.S3Bucket}, nil

	case cfg.BackgroundsManifest != "":
		catalog, err := backgrounds.LoadCatalogManifest(cfg.BackgroundsManifest)
		if err != nil {
			return nil, nil, err
		}
		return catalog, backgrounds.FileSource{Root: cfg.BackgroundsDir}, nil

	default:
		catalog, err := backgrounds.LoadCatalogDir(cfg.BackgroundsDir)
		if err != nil {
			return nil, nil, err
		}
		return catalog, backgrounds.FileSource{Root: cfg.BackgroundsDir}, nil
	}
}

func (a *App) usageStore(cfg config.Config) (backgrounds.UsageStore, error) {
	if cfg.RedisAddr == "" {
		a.logger.Info("rotation state kept in memory")
		return backgrounds.NewMemoryUsage(), nil
	}
	usage, err := backgrounds.NewRedisUsage(backgrounds.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		TTL:      cfg.RotationTTL,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, usage)
	a.logger.Info("rotation state kept in redis", zap.String("addr", cfg.RedisAddr))
	return usage, nil
}

// Close releases the engine workspace and external connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
