// Package pipeline runs the reel generation state machine: pick a background,
// narrate the script, time the captions, and burn everything into one video.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"reelgen/backgrounds"
	"reelgen/captions"
	"reelgen/config"
	"reelgen/engine"
	"reelgen/voice"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AssetSelector picks a background reference for a category.
type AssetSelector interface {
	Select(ctx context.Context, cat backgrounds.Category) (backgrounds.Asset, error)
}

// VoiceSynthesizer turns a script into narration audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, script string, progress voice.ProgressFunc) ([]byte, error)
}

// EngineProvider leases the media engine to one run at a time.
type EngineProvider interface {
	Acquire(ctx context.Context) (engine.Engine, func(), error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Selector AssetSelector
	Source   backgrounds.Source
	Voice    VoiceSynthesizer
	Prober   engine.Prober
	Engine   EngineProvider
}

// Options tunes an Orchestrator. Zero values use the config defaults.
type Options struct {
	VoiceTimeout  time.Duration
	ProbeTimeout  time.Duration
	EncodeTimeout time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Request describes one reel to generate.
type Request struct {
	// RunID names the run; a new UUID is used when empty.
	RunID  string
	Script string

	// Category selects a rotating background. Ignored when CustomVideo is set.
	Category backgrounds.Category

	// CustomVideo replaces the rotating background.
	CustomVideo []byte

	// Captions is an optional hand-edited SRT track used instead of the
	// synthesized cues.
	Captions string
}

// Result is the output of a successful run.
type Result struct {
	RunID         string            `json:"run_id"`
	Video         []byte            `json:"-"`
	Captions      string            `json:"captions"`
	Cues          []captions.Cue    `json:"cues"`
	Asset         backgrounds.Asset `json:"asset"`
	CustomAsset   bool              `json:"custom_asset"`
	AudioDuration time.Duration     `json:"audio_duration"`
	SuggestedName string            `json:"suggested_name"`
	Warnings      []string          `json:"warnings,omitempty"`
	Logs          []LogEntry        `json:"logs"`
}

// Orchestrator runs reel generation requests.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New builds an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.VoiceTimeout <= 0 {
		opts.VoiceTimeout = config.DefaultVoiceTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = config.DefaultProbeTimeout
	}
	if opts.EncodeTimeout <= 0 {
		opts.EncodeTimeout = config.DefaultEncodeTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, opts: opts, logger: logger}
}

var unsafeRunID = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NormalizeRunID replaces characters unsafe in file names and falls back to
// a new ID when nothing usable is left.
func NormalizeRunID(id string) string {
	id = strings.Trim(unsafeRunID.ReplaceAllString(strings.TrimSpace(id), "-"), "-")
	if id == "" {
		return NewRunID()
	}
	return id
}

// Stream runs req in the background and delivers its events on the returned
// channel. Progress events are dropped if the reader falls behind. The
// terminal event is delivered unless ctx is done first; the channel is
// closed either way.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		_, _ = o.Run(ctx, req, channelObserver(ctx, ch))
	}()
	return ch
}

func channelObserver(ctx context.Context, ch chan<- Event) Observer {
	return ObserverFunc(func(ev Event) {
		if ev.State.Terminal() {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})
}

// Run executes req to completion. It returns the Result on success or a
// *Error naming the failed stage. Every resource staged in the engine is
// released before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request, observer Observer) (*Result, error) {
	return o.drive(ctx, newRun(NormalizeRunID(req.RunID), observer, o.opts.Now), req)
}

// Start executes req in a new goroutine and returns its Run for polling.
func (o *Orchestrator) Start(ctx context.Context, req Request, observer Observer) *Run {
	run := newRun(NormalizeRunID(req.RunID), observer, o.opts.Now)
	go func() {
		_, _ = o.drive(ctx, run, req)
	}()
	return run
}

func (o *Orchestrator) drive(ctx context.Context, run *Run, req Request) (*Result, error) {
	logger := o.logger.With(zap.String("run_id", run.ID()))

	res, err := o.execute(ctx, run, req, logger)
	if err != nil {
		logger.Warn("reel generation failed", zap.Error(err))
		run.fail(err)
		return nil, err
	}
	logger.Info("reel generated",
		zap.Int("bytes", len(res.Video)),
		zap.Duration("audio_duration", res.AudioDuration),
		zap.Int("cues", len(res.Cues)),
	)
	run.succeed(res)
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, req Request, logger *zap.Logger) (*Result, error) {
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return nil, newError(KindEmptyScript, StateIdle, nil)
	}

	var edited []captions.Cue
	if strings.TrimSpace(req.Captions) != "" {
		cues, err := captions.Parse(req.Captions)
		if err != nil {
			return nil, newError(KindInvalidCaptions, StateIdle, err)
		}
		edited = cues
	}

	// Selecting the background
	run.enter(StateSelectingAsset, "Selecting background video...")
	asset, video, custom, err := o.selectAsset(ctx, run, req)
	if err != nil {
		return nil, err
	}
	run.advance(config.ProgressAssetSelected)

	// Narration
	run.enter(StateSynthesizing, "Generating voice narration...")
	audio, err := o.synthesize(ctx, run, script)
	if err != nil {
		return nil, err
	}
	run.advance(config.ProgressVoiceDone)

	run.enter(StateProbingDuration, "Measuring narration length...")
	duration, err := o.probe(ctx, audio)
	if err != nil {
		return nil, newError(KindAudioDecodeFailed, StateProbingDuration, err)
	}
	run.logf("Audio duration: %.3fs", duration.Seconds())
	run.advance(config.ProgressDurationProbed)

	run.enter(StateSynthesizingSubtitles, "Generating captions...")
	cues := edited
	if cues == nil {
		cues, err = captions.Synthesize(script, duration)
		if err != nil {
			return nil, newError(KindAudioDecodeFailed, StateSynthesizingSubtitles, err)
		}
	} else {
		if err := captions.Validate(cues, script, duration); err != nil {
			return nil, newError(KindInvalidCaptions, StateSynthesizingSubtitles, err)
		}
		run.logf("Using %d edited caption cues", len(cues))
	}
	track := captions.Render(cues)
	run.logf("Generated %d caption cues", len(cues))
	run.advance(config.ProgressSubtitlesDone)

	res := &Result{
		RunID:         run.ID(),
		Captions:      track,
		Cues:          cues,
		Asset:         asset,
		CustomAsset:   custom,
		AudioDuration: duration,
		SuggestedName: fmt.Sprintf("reel-%s.mp4", run.ID()),
	}

	res.Video, err = o.encode(ctx, run, logger, stagedInputs{
		video:     video,
		audio:     audio,
		subtitles: []byte(track),
		duration:  duration,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) selectAsset(ctx context.Context, run *Run, req Request) (backgrounds.Asset, []byte, bool, error) {
	if req.CustomVideo != nil {
		if len(req.CustomVideo) == 0 {
			return backgrounds.Asset{}, nil, true, newError(KindAssetFetchFailed, StateSelectingAsset, errors.New("custom video is empty"))
		}
		run.logf("Using custom video (%d bytes)", len(req.CustomVideo))
		return backgrounds.Asset{Ref: "custom"}, req.CustomVideo, true, nil
	}

	asset, err := o.deps.Selector.Select(ctx, req.Category)
	if err != nil {
		if errors.Is(err, backgrounds.ErrNoAssetsAvailable) {
			return asset, nil, false, newError(KindNoAssetsAvailable, StateSelectingAsset, err)
		}
		return asset, nil, false, newError(KindAssetFetchFailed, StateSelectingAsset, err)
	}
	run.logf("Selected background %s (%s)", asset.Ref, asset.Category.DisplayName())

	data, err := o.deps.Source.Fetch(ctx, asset.Ref)
	if err != nil {
		return asset, nil, false, newError(KindAssetFetchFailed, StateSelectingAsset, err)
	}
	if len(data) == 0 {
		return asset, nil, false, newError(KindAssetFetchFailed, StateSelectingAsset, fmt.Errorf("background %s is empty", asset.Ref))
	}
	run.logf("Background loaded (%d bytes)", len(data))
	return asset, data, false, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, run *Run, script string) ([]byte, error) {
	vctx, cancel := context.WithTimeout(ctx, o.opts.VoiceTimeout)
	defer cancel()

	toProgress := run.scaled(config.ProgressAssetSelected, config.ProgressVoiceDone)
	audio, err := o.deps.Voice.Synthesize(vctx, script, func(received, total int64) {
		if total > 0 {
			toProgress(float64(received) / float64(total))
		}
	})
	if err != nil {
		return nil, newError(KindSynthesisFailed, StateSynthesizing, err)
	}
	if len(audio) == 0 {
		return nil, newError(KindSynthesisFailed, StateSynthesizing, errors.New("no audio returned"))
	}
	run.logf("Voice narration received (%d bytes)", len(audio))
	return audio, nil
}

func (o *Orchestrator) probe(ctx context.Context, audio []byte) (time.Duration, error) {
	pctx, cancel := context.WithTimeout(ctx, o.opts.ProbeTimeout)
	defer cancel()

	d, err := o.deps.Prober.Duration(pctx, audio)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive audio duration %v", d)
	}
	return d, nil
}

type stagedInputs struct {
	video, audio, subtitles []byte
	duration                time.Duration
}

// encode leases the engine, stages the inputs, runs the encode and reads the
// output back. Whatever was staged is released before it returns.
func (o *Orchestrator) encode(ctx context.Context, run *Run, logger *zap.Logger, in stagedInputs) ([]byte, error) {
	run.enter(StateStagingResources, "Preparing media engine...")
	eng, releaseLease, err := o.deps.Engine.Acquire(ctx)
	if err != nil {
		return nil, newError(KindEngineInitFailed, StateStagingResources, err)
	}
	defer releaseLease()

	names := struct{ video, audio, subtitles, output string }{
		video:     run.ID() + "-" + config.InputVideoName,
		audio:     run.ID() + "-" + config.AudioName,
		subtitles: run.ID() + "-" + config.SubtitlesName,
		output:    run.ID() + "-" + config.OutputName,
	}

	var (
		mu     sync.Mutex
		staged []string
	)
	defer func() {
		o.cleanup(ctx, run, logger, eng, staged)
	}()

	stageProgress := run.scaled(config.ProgressSubtitlesDone, config.ProgressStaged)
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range []struct {
		name string
		data []byte
	}{
		{names.video, in.video},
		{names.audio, in.audio},
		{names.subtitles, in.subtitles},
	} {
		g.Go(func() error {
			if err := eng.Stage(gctx, r.name, r.data); err != nil {
				return err
			}
			mu.Lock()
			staged = append(staged, r.name)
			done := len(staged)
			mu.Unlock()
			stageProgress(float64(done) / 3)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newError(KindEngineStagingFailed, StateStagingResources, err)
	}
	run.logf("Staged %s, %s, %s", names.video, names.audio, names.subtitles)
	run.advance(config.ProgressStaged)

	run.enter(StateEncoding, "Merging video, audio and captions...")
	cmd := engine.ReelCommand(engine.ReelSpec{
		Video:     names.video,
		Audio:     names.audio,
		Subtitles: names.subtitles,
		Output:    names.output,
		Duration:  in.duration,
	})
	run.logf("ffmpeg %s", strings.Join(cmd.Args, " "))

	// The output may exist partially even if encoding fails.
	mu.Lock()
	staged = append(staged, names.output)
	mu.Unlock()

	ectx, cancel := context.WithTimeout(ctx, o.opts.EncodeTimeout)
	defer cancel()
	if err := eng.Execute(ectx, cmd, run.scaled(config.ProgressStaged, config.ProgressEncoded)); err != nil {
		return nil, newError(KindEngineExecutionFailed, StateEncoding, err)
	}
	run.advance(config.ProgressEncoded)

	run.enter(StateReadingOutput, "Reading encoded reel...")
	video, err := eng.Read(ctx, names.output)
	if err != nil {
		return nil, newError(KindReadbackFailed, StateReadingOutput, err)
	}
	if len(video) == 0 {
		return nil, newError(KindReadbackFailed, StateReadingOutput, errors.New("encoded reel is empty"))
	}
	run.logf("Encoded reel is %d bytes", len(video))
	run.advance(config.ProgressOutputRead)
	return video, nil
}

// cleanup releases staged names on a context detached from the caller's
// cancellation. Failures become warnings.
func (o *Orchestrator) cleanup(ctx context.Context, run *Run, logger *zap.Logger, eng engine.Engine, names []string) {
	run.enter(StateCleaningUp, "Cleaning up temporary files...")
	if len(names) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.CleanupTimeout)
	defer cancel()
	if err := eng.Release(cctx, names...); err != nil {
		logger.Warn("temporary files cleanup failed", zap.Strings("names", names), zap.Error(err))
		run.warn(fmt.Sprintf("Temporary files cleanup failed: %v", err))
		return
	}
	run.logf("Released %d temporary files", len(names))
}
