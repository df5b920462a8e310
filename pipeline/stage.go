package pipeline

import "time"

// State is a step of the reel generation state machine.
type State string

const (
	StateIdle                  State = "idle"
	StateSelectingAsset        State = "selecting_asset"
	StateSynthesizing          State = "synthesizing"
	StateProbingDuration       State = "probing_duration"
	StateSynthesizingSubtitles State = "synthesizing_subtitles"
	StateStagingResources      State = "staging_resources"
	StateEncoding              State = "encoding"
	StateReadingOutput         State = "reading_output"
	StateCleaningUp            State = "cleaning_up"
	StateSucceeded             State = "succeeded"
	StateFailed                State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// LogEntry is a single run log line with timestamp.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Event is one observation of a run: a stage change, a progress step or a
// log line. The final event of a run has a terminal State and carries
// either Result or Err.
type Event struct {
	RunID    string    `json:"run_id"`
	State    State     `json:"state"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Warning  bool      `json:"warning,omitempty"`
	Time     time.Time `json:"time"`

	Result *Result `json:"-"`
	Err    error   `json:"-"`
}

// Observer receives run events synchronously from the run's goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
