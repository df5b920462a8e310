package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"reelgen/config"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Prober measures the exact duration of encoded audio.
type Prober interface {
	Duration(ctx context.Context, audio []byte) (time.Duration, error)
}

// FFprobe measures audio with ffprobe through ffmpeg-go.
type FFprobe struct {
	// TempDir holds the short-lived probe input. Defaults to os.TempDir().
	TempDir string
	Timeout time.Duration

	probe func(file string, timeout time.Duration) (string, error)
}

// NewFFprobe returns a prober with the default timeout.
func NewFFprobe(tempDir string, timeout time.Duration) *FFprobe {
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeout
	}
	return &FFprobe{TempDir: tempDir, Timeout: timeout, probe: probeFile}
}

func probeFile(file string, timeout time.Duration) (string, error) {
	return ffmpeg.ProbeWithTimeout(file, timeout, ffmpeg.KwArgs{})
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Duration writes audio to a temporary file and asks ffprobe for its length.
// Failures wrap ErrDecodeFailed.
func (p *FFprobe) Duration(ctx context.Context, audio []byte) (time.Duration, error) {
	if len(audio) == 0 {
		return 0, fmt.Errorf("%w: no audio data", ErrDecodeFailed)
	}

	f, err := os.CreateTemp(p.TempDir, "reelgen-probe-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("%w: create probe file: %w", ErrDecodeFailed, err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(audio); err != nil {
		f.Close()
		return 0, fmt.Errorf("%w: write probe file: %w", ErrDecodeFailed, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("%w: write probe file: %w", ErrDecodeFailed, err)
	}

	timeout := p.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}
	if timeout <= 0 && ctx.Err() != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecodeFailed, ctx.Err())
	}

	probe := p.probe
	if probe == nil {
		probe = probeFile
	}
	out, err := probe(f.Name(), timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %w", ErrDecodeFailed, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out string) (time.Duration, error) {
	var parsed probeOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output: %w", ErrDecodeFailed, err)
	}

	candidates := []string{parsed.Format.Duration}
	for _, s := range parsed.Streams {
		if s.CodecType == "audio" {
			candidates = append(candidates, s.Duration)
		}
	}
	for _, c := range candidates {
		secs, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
			continue
		}
		return time.Duration(math.Round(secs * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("%w: ffprobe reported no duration", ErrDecodeFailed)
}
