package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"reelgen/config"
	"reelgen/pipeline"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Metadata is the YouTube snippet for an upload.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
}

// YouTube uploads reels as Shorts using a service account.
type YouTube struct {
	service *youtube.Service
	logger  *zap.Logger
}

// NewYouTube authenticates with the service account JSON file.
func NewYouTube(ctx context.Context, serviceAccountFile string, logger *zap.Logger) (*YouTube, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	return NewYouTubeWithService(service, logger), nil
}

// NewYouTubeWithService wraps an existing client, e.g. one pointed at a test
// server.
func NewYouTubeWithService(service *youtube.Service, logger *zap.Logger) *YouTube {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YouTube{service: service, logger: logger}
}

// Upload publishes res and returns the YouTube video ID.
func (y *YouTube) Upload(ctx context.Context, res *pipeline.Result, script string) (string, error) {
	if res == nil || len(res.Video) == 0 {
		return "", ErrNoResult
	}
	meta := GenerateMetadata(script, res)

	y.logger.Info("uploading reel",
		zap.String("run_id", res.RunID),
		zap.String("title", meta.Title),
		zap.Float64("mb", float64(len(res.Video))/(1024*1024)),
	)

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           config.YouTubePrivacyStatus,
			SelfDeclaredMadeForKids: false,
		},
	}

	resp, err := y.service.Videos.
		Insert([]string{"snippet", "status"}, video).
		Media(bytes.NewReader(res.Video)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	y.logger.Info("reel uploaded",
		zap.String("run_id", res.RunID),
		zap.String("url", "https://youtube.com/shorts/"+resp.Id),
	)
	return resp.Id, nil
}

// GenerateMetadata derives a title from the first words of the script and
// tags the upload as a Short.
func GenerateMetadata(script string, res *pipeline.Result) Metadata {
	words := strings.Fields(script)
	if len(words) > config.MaxTitleWords {
		words = words[:config.MaxTitleWords]
	}
	title := strings.Join(words, " ")
	if title == "" {
		title = "Reel " + res.RunID
	}
	if r := []rune(title); len(r) > config.MaxTitleLength {
		title = string(r[:config.MaxTitleLength-3]) + "..."
	}

	tags := []string{"shorts", "reels"}
	if name := res.Asset.Category.DisplayName(); name != "" && !res.CustomAsset {
		tags = append(tags, strings.ToLower(name))
	}

	return Metadata{
		Title:       title,
		Description: script + "\n\n#shorts",
		Tags:        tags,
		CategoryID:  config.YouTubeCategoryID,
	}
}
