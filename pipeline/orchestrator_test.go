package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"reelgen/backgrounds"
	"reelgen/captions"
	"reelgen/engine"
	"reelgen/voice"
)

type fakeSelector struct {
	calls int
	asset backgrounds.Asset
	err   error
}

func (f *fakeSelector) Select(_ context.Context, cat backgrounds.Category) (backgrounds.Asset, error) {
	f.calls++
	if f.err != nil {
		return backgrounds.Asset{}, f.err
	}
	a := f.asset
	a.Category = cat
	return a, nil
}

type fakeSource struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeSource) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeVoice struct {
	calls int
	audio []byte
	err   error
}

func (f *fakeVoice) Synthesize(_ context.Context, _ string, progress voice.ProgressFunc) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	total := int64(len(f.audio))
	progress(total/2, total)
	progress(total, total)
	return f.audio, nil
}

type fakeProber struct {
	calls int
	d     time.Duration
	err   error
}

func (f *fakeProber) Duration(context.Context, []byte) (time.Duration, error) {
	f.calls++
	return f.d, f.err
}

// fakeEngine keeps staged files in memory.
type fakeEngine struct {
	mu       sync.Mutex
	files    map[string][]byte
	released []string
	cmd      engine.Command

	stageErr   map[string]error
	execErr    error
	readErr    error
	releaseErr error
	output     []byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{files: map[string][]byte{}, output: []byte("reel-bytes")}
}

func (e *fakeEngine) Stage(_ context.Context, name string, data []byte) error {
	for suffix, err := range e.stageErr {
		if strings.HasSuffix(name, suffix) {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = data
	return nil
}

func (e *fakeEngine) Execute(_ context.Context, cmd engine.Command, progress engine.ProgressFunc) error {
	e.cmd = cmd
	progress(0.5)
	if e.execErr != nil {
		return e.execErr
	}
	progress(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, arg := range cmd.Args {
		if strings.HasSuffix(arg, "-output.mp4") {
			e.files[arg] = e.output
		}
	}
	return nil
}

func (e *fakeEngine) Read(_ context.Context, name string) ([]byte, error) {
	if e.readErr != nil {
		return nil, e.readErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found", name)
	}
	return data, nil
}

func (e *fakeEngine) Release(_ context.Context, names ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		delete(e.files, n)
		e.released = append(e.released, n)
	}
	return e.releaseErr
}

func (e *fakeEngine) stagedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.files)
}

type fakeProvider struct {
	eng      *fakeEngine
	err      error
	acquired int
	released int
}

func (p *fakeProvider) Acquire(context.Context) (engine.Engine, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	p.acquired++
	return p.eng, func() { p.released++ }, nil
}

type harness struct {
	selector *fakeSelector
	source   *fakeSource
	voice    *fakeVoice
	prober   *fakeProber
	engine   *fakeEngine
	provider *fakeProvider
}

func newHarness() *harness {
	eng := newFakeEngine()
	return &harness{
		selector: &fakeSelector{asset: backgrounds.Asset{Ref: "minecraft/parkour.mp4"}},
		source:   &fakeSource{data: []byte("background")},
		voice:    &fakeVoice{audio: []byte("narration")},
		prober:   &fakeProber{d: 2 * time.Second},
		engine:   eng,
		provider: &fakeProvider{eng: eng},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(Deps{
		Selector: h.selector,
		Source:   h.source,
		Voice:    h.voice,
		Prober:   h.prober,
		Engine:   h.provider,
	}, Options{})
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.State {
			out = append(out, e.State)
		}
	}
	return out
}

func TestRunSucceeds(t *testing.T) {
	h := newHarness()
	rec := &recorder{}

	res, err := h.orchestrator().Run(context.Background(), Request{
		RunID:    "run-1",
		Script:   "This is a test script",
		Category: backgrounds.CategoryMinecraft,
	}, rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if string(res.Video) != "reel-bytes" {
		t.Fatalf("unexpected video %q", res.Video)
	}
	if res.SuggestedName != "reel-run-1.mp4" {
		t.Fatalf("unexpected name %q", res.SuggestedName)
	}
	if res.Asset.Category != backgrounds.CategoryMinecraft || res.CustomAsset {
		t.Fatalf("unexpected asset %+v", res.Asset)
	}
	if len(res.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(res.Cues))
	}
	if !strings.Contains(res.Captions, "00:00:01,200 --> 00:00:02,000\ntest script") {
		t.Fatalf("unexpected captions:\n%s", res.Captions)
	}
	if len(res.Logs) == 0 {
		t.Fatal("expected logs on the result")
	}

	want := []State{
		StateSelectingAsset, StateSynthesizing, StateProbingDuration,
		StateSynthesizingSubtitles, StateStagingResources, StateEncoding,
		StateReadingOutput, StateCleaningUp, StateSucceeded,
	}
	if got := rec.states(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}

	last := -1
	for _, e := range rec.events {
		if e.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", e.Progress, last)
		}
		if !e.State.Terminal() && e.Progress >= 100 {
			t.Fatalf("progress hit 100 before success in %s", e.State)
		}
		last = e.Progress
	}
	final := rec.events[len(rec.events)-1]
	if final.Progress != 100 || final.Result != res {
		t.Fatalf("unexpected final event %+v", final)
	}

	if n := h.engine.stagedCount(); n != 0 {
		t.Fatalf("expected every staged file released, %d left", n)
	}
	if h.provider.acquired != 1 || h.provider.released != 1 {
		t.Fatalf("lease acquired %d released %d", h.provider.acquired, h.provider.released)
	}
	for _, name := range h.engine.released {
		if !strings.HasPrefix(name, "run-1-") {
			t.Fatalf("staged name %q is not run-prefixed", name)
		}
	}
	if h.engine.cmd.Duration != 2*time.Second {
		t.Fatalf("command duration = %v", h.engine.cmd.Duration)
	}
}

func TestRunEmptyScriptTouchesNothing(t *testing.T) {
	h := newHarness()
	rec := &recorder{}

	_, err := h.orchestrator().Run(context.Background(), Request{Script: "   \n\t"}, rec)
	if !errors.Is(err, ErrEmptyScript) || KindOf(err) != KindEmptyScript {
		t.Fatalf("expected EmptyScript, got %v", err)
	}
	if h.selector.calls+h.source.calls+h.voice.calls+h.prober.calls+h.provider.acquired != 0 {
		t.Fatal("no collaborator may be called for an empty script")
	}
	final := rec.events[len(rec.events)-1]
	if final.State != StateFailed || final.Err == nil {
		t.Fatalf("unexpected final event %+v", final)
	}
}

func TestRunStagingFailureReleasesStaged(t *testing.T) {
	h := newHarness()
	h.engine.stageErr = map[string]error{"-audio.mp3": errors.New("disk full")}

	_, err := h.orchestrator().Run(context.Background(), Request{
		RunID:    "stage",
		Script:   "hello world",
		Category: backgrounds.CategorySubway,
	}, nil)
	if KindOf(err) != KindEngineStagingFailed {
		t.Fatalf("expected EngineStagingFailed, got %v", err)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Stage != StateStagingResources {
		t.Fatalf("unexpected stage in %v", err)
	}
	if n := h.engine.stagedCount(); n != 0 {
		t.Fatalf("expected staged files released, %d left", n)
	}
	if h.provider.released != 1 {
		t.Fatal("expected the engine lease returned")
	}
}

func TestRunFailureKinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		kind  Kind
		stage State
	}{
		{
			name:  "no assets",
			setup: func(h *harness) { h.selector.err = fmt.Errorf("%w: empty", backgrounds.ErrNoAssetsAvailable) },
			kind:  KindNoAssetsAvailable,
			stage: StateSelectingAsset,
		},
		{
			name:  "fetch",
			setup: func(h *harness) { h.source.err = errors.New("404") },
			kind:  KindAssetFetchFailed,
			stage: StateSelectingAsset,
		},
		{
			name:  "voice",
			setup: func(h *harness) { h.voice.err = voice.ErrSynthesisFailed },
			kind:  KindSynthesisFailed,
			stage: StateSynthesizing,
		},
		{
			name:  "probe",
			setup: func(h *harness) { h.prober.err = errors.New("invalid data") },
			kind:  KindAudioDecodeFailed,
			stage: StateProbingDuration,
		},
		{
			name:  "zero duration",
			setup: func(h *harness) { h.prober.d = 0 },
			kind:  KindAudioDecodeFailed,
			stage: StateProbingDuration,
		},
		{
			name:  "engine init",
			setup: func(h *harness) { h.provider.err = engine.ErrInitFailed },
			kind:  KindEngineInitFailed,
			stage: StateStagingResources,
		},
		{
			name:  "execute",
			setup: func(h *harness) { h.engine.execErr = &engine.ExecError{ExitCode: 1, Stderr: "boom"} },
			kind:  KindEngineExecutionFailed,
			stage: StateEncoding,
		},
		{
			name:  "readback",
			setup: func(h *harness) { h.engine.readErr = engine.ErrReadFailed },
			kind:  KindReadbackFailed,
			stage: StateReadingOutput,
		},
		{
			name:  "empty output",
			setup: func(h *harness) { h.engine.output = []byte{} },
			kind:  KindReadbackFailed,
			stage: StateReadingOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			tt.setup(h)
			rec := &recorder{}

			_, err := h.orchestrator().Run(context.Background(), Request{
				Script:   "one two three four",
				Category: backgrounds.CategoryGTA,
			}, rec)
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pe.Kind != tt.kind || pe.Stage != tt.stage {
				t.Fatalf("got %s in %s, want %s in %s", pe.Kind, pe.Stage, tt.kind, tt.stage)
			}
			if n := h.engine.stagedCount(); n != 0 {
				t.Fatalf("%d staged files left behind", n)
			}
			if final := rec.events[len(rec.events)-1]; final.State != StateFailed {
				t.Fatalf("final state = %s", final.State)
			}
		})
	}
}

func TestRunCustomVideoBypassesSelector(t *testing.T) {
	h := newHarness()
	res, err := h.orchestrator().Run(context.Background(), Request{
		Script:      "custom clip please",
		CustomVideo: []byte("my clip"),
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.CustomAsset {
		t.Fatal("expected custom asset flag")
	}
	if h.selector.calls != 0 || h.source.calls != 0 {
		t.Fatal("selector and source must not be used for a custom video")
	}

	_, err = h.orchestrator().Run(context.Background(), Request{
		Script:      "custom clip please",
		CustomVideo: []byte{},
	}, nil)
	if KindOf(err) != KindAssetFetchFailed {
		t.Fatalf("expected AssetFetchFailed for empty upload, got %v", err)
	}
}

func TestRunUsesEditedCaptions(t *testing.T) {
	h := newHarness()
	edited := "1\n00:00:00,000 --> 00:00:01,500\nHello there\n\n2\n00:00:01,500 --> 00:00:02,000\nfriend\n\n"

	res, err := h.orchestrator().Run(context.Background(), Request{
		Script:   "hello there friend",
		Category: backgrounds.CategoryFortnite,
		Captions: edited,
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Captions != edited {
		t.Fatalf("captions = %q", res.Captions)
	}

	_, err = h.orchestrator().Run(context.Background(), Request{
		Script:   "hello",
		Category: backgrounds.CategoryFortnite,
		Captions: "not a caption track",
	}, nil)
	if KindOf(err) != KindInvalidCaptions {
		t.Fatalf("expected InvalidCaptions, got %v", err)
	}
}

func TestRunRejectsEditedCaptionsThatDoNotFit(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		captions string
	}{
		{"ends after audio", "hello world", "1\n00:00:00,000 --> 00:10:00,000\nhello world\n"},
		{"ends just after audio", "hello world", "1\n00:00:00,000 --> 00:00:02,001\nhello world\n"},
		{"words changed", "hello world", "1\n00:00:00,000 --> 00:00:01,000\ngoodbye world\n"},
		{"words dropped", "hello big world", "1\n00:00:00,000 --> 00:00:01,000\nhello world\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.orchestrator().Run(context.Background(), Request{
				Script:   tt.script,
				Category: backgrounds.CategoryGTA,
				Captions: tt.captions,
			}, nil)
			var pe *Error
			if !errors.As(err, &pe) || pe.Kind != KindInvalidCaptions || pe.Stage != StateSynthesizingSubtitles {
				t.Fatalf("expected InvalidCaptions at subtitles stage, got %v", err)
			}
			if !errors.Is(err, captions.ErrTrackMismatch) {
				t.Fatalf("expected the cause to be kept, got %v", err)
			}
			if h.provider.acquired != 0 {
				t.Fatal("engine must not be acquired for rejected captions")
			}
		})
	}
}

func TestRunCleanupFailureIsWarning(t *testing.T) {
	h := newHarness()
	h.engine.releaseErr = errors.New("permission denied")

	res, err := h.orchestrator().Run(context.Background(), Request{
		Script:   "still works",
		Category: backgrounds.CategorySatisfying,
	}, nil)
	if err != nil {
		t.Fatalf("cleanup failure must not fail the run: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Temporary files cleanup failed") {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
}

func TestStreamTerminalSendGivesUpOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and never read, like a caller that walked away.
	ch := make(chan Event)
	obs := channelObserver(ctx, ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		obs.OnEvent(Event{State: StateEncoding, Progress: 60})
		obs.OnEvent(Event{State: StateSucceeded, Progress: 100})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked on an abandoned channel")
	}
}

func TestStreamDeliversTerminalEvent(t *testing.T) {
	h := newHarness()
	var last Event
	for ev := range h.orchestrator().Stream(context.Background(), Request{
		RunID:    "stream",
		Script:   "streamed script",
		Category: backgrounds.CategoryMinecraft,
	}) {
		last = ev
	}
	if last.State != StateSucceeded || last.Result == nil {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestNormalizeRunID(t *testing.T) {
	if got := NormalizeRunID(" ../etc/passwd "); got != "etc-passwd" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeRunID("///"); got == "" {
		t.Fatal("expected a generated id")
	}
}
