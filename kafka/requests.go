// Package kafka turns reel requests from a topic into runs and reports each
// outcome on a completion topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelgen/backgrounds"
	"reelgen/pipeline"
	"reelgen/publish"
	sharedKafka "reelgen/shared/kafka"

	"go.uber.org/zap"
)

// ReelRequest is the message consumed from the request topic.
type ReelRequest struct {
	ID       string `json:"id"`
	Script   string `json:"script"`
	Category string `json:"category"`
	Captions string `json:"captions,omitempty"`
	// Publish archives the reel and uploads it to YouTube when configured.
	Publish bool `json:"publish"`
}

// ReelCompleted is published once per processed request.
type ReelCompleted struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   pipeline.Kind `json:"error_kind,omitempty"`
	DurationMs  int64         `json:"duration_ms,omitempty"`
	Cues        int           `json:"cues,omitempty"`
	VideoKey    string        `json:"video_key,omitempty"`
	CaptionsKey string        `json:"captions_key,omitempty"`
	YouTubeID   string        `json:"youtube_id,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Runner executes a request synchronously. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (*pipeline.Result, error)
}

// Archiver stores finished reels. *publish.S3Archiver satisfies it.
type Archiver interface {
	Archive(ctx context.Context, res *pipeline.Result) (publish.Archived, error)
}

// Uploader publishes finished reels. *publish.YouTube satisfies it.
type Uploader interface {
	Upload(ctx context.Context, res *pipeline.Result, script string) (string, error)
}

// Publisher sends completion messages. *sharedKafka.Producer satisfies it.
type Publisher interface {
	PublishJSON(topic, key string, v any) error
}

// Handler processes reel requests.
type Handler struct {
	Runner          Runner
	Archiver        Archiver // optional
	Uploader        Uploader // optional
	Publisher       Publisher
	CompletionTopic string
	Logger          *zap.Logger
}

// MessageHandler returns the typed handler to plug into a consumer.
// Malformed requests are committed and skipped; a request is redelivered
// only when its completion could not be published.
func (h *Handler) MessageHandler() *sharedKafka.TypedMessageHandler[ReelRequest] {
	return &sharedKafka.TypedMessageHandler[ReelRequest]{
		Validate:   validate,
		Process:    h.Process,
		AlwaysMark: true,
		Logger:     h.logger(),
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func validate(msg *ReelRequest) error {
	if strings.TrimSpace(msg.ID) == "" {
		return errors.New("request id is required")
	}
	if strings.TrimSpace(msg.Script) == "" {
		return errors.New("script is required")
	}
	if _, err := backgrounds.ParseCategory(msg.Category); err != nil {
		return err
	}
	return nil
}

// Process runs one request and publishes its outcome.
func (h *Handler) Process(ctx context.Context, msg *ReelRequest) error {
	logger := h.logger().With(zap.String("request_id", msg.ID))
	cat, _ := backgrounds.ParseCategory(msg.Category)

	logger.Info("processing reel request", zap.String("category", string(cat)))
	res, err := h.Runner.Run(ctx, pipeline.Request{
		RunID:    msg.ID,
		Script:   msg.Script,
		Category: cat,
		Captions: msg.Captions,
	}, nil)

	out := ReelCompleted{ID: msg.ID, Status: StatusSuccess}
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		out.ErrorKind = pipeline.KindOf(err)
	} else {
		out.DurationMs = res.AudioDuration.Milliseconds()
		out.Cues = len(res.Cues)
		out.Warnings = res.Warnings
		if msg.Publish {
			h.publish(ctx, logger, msg, res, &out)
		}
	}

	if err := h.Publisher.PublishJSON(h.CompletionTopic, msg.ID, out); err != nil {
		return fmt.Errorf("failed to publish completion for %s: %w", msg.ID, err)
	}
	logger.Info("reel request completed", zap.String("status", out.Status))
	return nil
}

// publish failures are reported as warnings; the reel itself succeeded.
func (h *Handler) publish(ctx context.Context, logger *zap.Logger, msg *ReelRequest, res *pipeline.Result, out *ReelCompleted) {
	if h.Archiver != nil {
		keys, err := h.Archiver.Archive(ctx, res)
		if err != nil {
			logger.Error("archive failed", zap.Error(err))
			out.Warnings = append(out.Warnings, "Archive failed: "+err.Error())
		} else {
			out.VideoKey, out.CaptionsKey = keys.VideoKey, keys.CaptionsKey
		}
	}
	if h.Uploader != nil {
		id, err := h.Uploader.Upload(ctx, res, msg.Script)
		if err != nil {
			logger.Error("youtube upload failed", zap.Error(err))
			out.Warnings = append(out.Warnings, "YouTube upload failed: "+err.Error())
		} else {
			out.YouTubeID = id
		}
	}
}
