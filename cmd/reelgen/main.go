package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"reelgen/app"
	"reelgen/backgrounds"
	"reelgen/config"
	"reelgen/logging"
	"reelgen/pipeline"

	"go.uber.org/zap"
)

func main() {
	script := flag.String("script", "", "Narration script")
	scriptFile := flag.String("file", "", "Read the script from a file instead")
	category := flag.String("category", string(backgrounds.CategoryMinecraft), "Background category (satisfying, minecraft, subway, gta, fortnite)")
	videoPath := flag.String("video", "", "Use this MP4 as the background instead of the catalog")
	captionsPath := flag.String("captions", "", "Burn these SRT captions instead of the synthesized ones")
	out := flag.String("out", "", "Output MP4 path (defaults to the suggested name)")
	writeSRT := flag.Bool("srt", false, "Also write the captions next to the output")
	publish := flag.Bool("publish", false, "Archive to S3 and upload to YouTube when configured")
	runID := flag.String("id", "", "Run identifier (random when empty)")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Must(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	req, err := buildRequest(*runID, *script, *scriptFile, *category, *videoPath, *captionsPath)
	if err != nil {
		flag.Usage()
		logger.Fatal("invalid arguments", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, req, *out, *writeSRT, *publish); err != nil {
		logger.Fatal("reel generation failed",
			zap.String("kind", string(pipeline.KindOf(err))),
			zap.Error(err),
		)
	}
}

func buildRequest(id, script, scriptFile, category, videoPath, captionsPath string) (pipeline.Request, error) {
	req := pipeline.Request{RunID: id, Script: script}

	if scriptFile != "" {
		b, err := os.ReadFile(scriptFile)
		if err != nil {
			return req, fmt.Errorf("failed to read script: %w", err)
		}
		req.Script = string(b)
	}
	if strings.TrimSpace(req.Script) == "" {
		return req, fmt.Errorf("--script or --file is required")
	}

	cat, err := backgrounds.ParseCategory(category)
	if err != nil {
		return req, err
	}
	req.Category = cat

	if videoPath != "" {
		b, err := os.ReadFile(videoPath)
		if err != nil {
			return req, fmt.Errorf("failed to read background video: %w", err)
		}
		req.CustomVideo = b
	}
	if captionsPath != "" {
		b, err := os.ReadFile(captionsPath)
		if err != nil {
			return req, fmt.Errorf("failed to read captions: %w", err)
		}
		req.Captions = string(b)
	}
	return req, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, req pipeline.Request, out string, writeSRT, publish bool) error {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	var res *pipeline.Result
	for ev := range a.Orchestrator.Stream(ctx, req) {
		switch {
		case ev.State == pipeline.StateFailed:
			return ev.Err
		case ev.State == pipeline.StateSucceeded:
			res = ev.Result
		case ev.Warning:
			logger.Warn(ev.Message, zap.Int("progress", ev.Progress))
		case ev.Message != "":
			logger.Info(ev.Message, zap.String("state", string(ev.State)), zap.Int("progress", ev.Progress))
		}
	}
	if res == nil {
		return ctx.Err()
	}

	if out == "" {
		out = res.SuggestedName
	}
	if err := os.WriteFile(out, res.Video, 0o644); err != nil {
		return fmt.Errorf("failed to write video: %w", err)
	}
	logger.Info("reel written",
		zap.String("path", out),
		zap.Int("bytes", len(res.Video)),
		zap.Duration("audio", res.AudioDuration),
		zap.String("asset", res.Asset.Ref),
	)

	if writeSRT {
		srt := strings.TrimSuffix(out, filepath.Ext(out)) + ".srt"
		if err := os.WriteFile(srt, []byte(res.Captions), 0o644); err != nil {
			return fmt.Errorf("failed to write captions: %w", err)
		}
		logger.Info("captions written", zap.String("path", srt), zap.Int("cues", len(res.Cues)))
	}

	if publish {
		publishResult(ctx, a, logger, res, req.Script)
	}
	return nil
}

// publishResult only logs failures; the reel is already on disk.
func publishResult(ctx context.Context, a *app.App, logger *zap.Logger, res *pipeline.Result, script string) {
	if a.Archiver == nil && a.YouTube == nil {
		logger.Warn("--publish given but neither S3 nor YouTube is configured")
		return
	}
	if a.Archiver != nil {
		if keys, err := a.Archiver.Archive(ctx, res); err != nil {
			logger.Error("archive failed", zap.Error(err))
		} else {
			logger.Info("archived", zap.String("video", keys.VideoKey), zap.String("captions", keys.CaptionsKey))
		}
	}
	if a.YouTube != nil {
		id, err := a.YouTube.Upload(ctx, res, script)
		if err != nil {
			logger.Error("youtube upload failed", zap.Error(err))
			return
		}
		logger.Info("uploaded", zap.String("url", "https://youtube.com/watch?v="+id))
	}
}
