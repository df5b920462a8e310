// Package publish ships finished reels out of the process: to an S3 archive
// and, optionally, to YouTube Shorts.
package publish

import (
	"context"
	"errors"
	"fmt"

	"reelgen/pipeline"

	"go.uber.org/zap"
)

// ErrNoResult is returned when a run has nothing to publish.
var ErrNoResult = errors.New("run has no result to publish")

// ObjectPutter stores an object. *common.S3 satisfies it.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Archived locates the stored copy of a reel.
type Archived struct {
	VideoKey    string `json:"video_key"`
	CaptionsKey string `json:"captions_key"`
}

// S3Archiver writes reels to <prefix>reels/<run id>/.
type S3Archiver struct {
	store  ObjectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Archiver builds an archiver. prefix is either empty or ends in "/".
func NewS3Archiver(store ObjectPutter, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archiver{store: store, bucket: bucket, prefix: prefix, logger: logger}
}

// Keys returns the object keys used for runID.
func (a *S3Archiver) Keys(runID string) Archived {
	base := fmt.Sprintf("%sreels/%s/", a.prefix, runID)
	return Archived{
		VideoKey:    base + "reel.mp4",
		CaptionsKey: base + "captions.srt",
	}
}

// Archive uploads the video and caption track of res.
func (a *S3Archiver) Archive(ctx context.Context, res *pipeline.Result) (Archived, error) {
	if res == nil || len(res.Video) == 0 {
		return Archived{}, ErrNoResult
	}
	keys := a.Keys(res.RunID)

	if err := a.store.Put(ctx, a.bucket, keys.VideoKey, res.Video, "video/mp4"); err != nil {
		return Archived{}, fmt.Errorf("failed to archive video: %w", err)
	}
	if err := a.store.Put(ctx, a.bucket, keys.CaptionsKey, []byte(res.Captions), "application/x-subrip"); err != nil {
		return Archived{}, fmt.Errorf("failed to archive captions: %w", err)
	}

	a.logger.Info("reel archived",
		zap.String("run_id", res.RunID),
		zap.String("bucket", a.bucket),
		zap.String("key", keys.VideoKey),
		zap.Int("bytes", len(res.Video)),
	)
	return keys, nil
}

// Hook adapts the archiver to a registry completion hook. Failed runs are
// skipped; archive errors are logged.
func (a *S3Archiver) Hook(ctx context.Context, run *pipeline.Run) {
	res, ok := run.Result()
	if !ok {
		return
	}
	if _, err := a.Archive(ctx, res); err != nil {
		a.logger.Error("archive failed", zap.String("run_id", run.ID()), zap.Error(err))
	}
}
