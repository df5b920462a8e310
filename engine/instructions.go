package engine

import (
	"fmt"
	"time"

	"reelgen/config"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ReelSpec names the staged resources of one reel encode.
type ReelSpec struct {
	Video     string // background clip
	Audio     string // narration
	Subtitles string // SRT caption track
	Output    string

	// Duration is the narration length, used for progress reporting.
	Duration time.Duration

	// Optional overrides; zero values use the config defaults.
	Width, Height int
	Style         string
	Preset        string
	CRF           string
}

// ReelCommand builds the single-pass encode: the first video stream of the
// background and the first audio stream of the narration, scaled and center
// cropped to a vertical frame with captions burned in, truncated to the
// shorter input.
func ReelCommand(spec ReelSpec) Command {
	width, height := spec.Width, spec.Height
	if width <= 0 || height <= 0 {
		width, height = config.VideoWidth, config.VideoHeight
	}
	style := spec.Style
	if style == "" {
		style = config.SubtitleStyle
	}
	preset := spec.Preset
	if preset == "" {
		preset = config.VideoPreset
	}
	crf := spec.CRF
	if crf == "" {
		crf = config.VideoCRF
	}

	video := ffmpeg.Input(spec.Video).Get("v:0")
	audio := ffmpeg.Input(spec.Audio).Get("a:0")

	// Passed as a raw -vf value so the style string keeps its commas.
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,subtitles=%s:force_style='%s'",
		width, height, width, height, spec.Subtitles, style,
	)

	args := ffmpeg.Output([]*ffmpeg.Stream{video, audio}, spec.Output, ffmpeg.KwArgs{
		"vf":       vf,
		"c:v":      config.VideoCodec,
		"preset":   preset,
		"crf":      crf,
		"pix_fmt":  "yuv420p",
		"c:a":      config.AudioCodec,
		"b:a":      config.AudioBitrate,
		"shortest": "",
		"movflags": "+faststart",
	}).OverWriteOutput().GetArgs()

	return Command{Args: args, Duration: spec.Duration}
}
