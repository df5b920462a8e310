package pipeline

import (
	"fmt"
	"sync"
	"time"

	"reelgen/config"
)

// Run tracks one pipeline execution: its state, monotonic progress, a
// bounded log and any cleanup warnings. A Run is never reused.
type Run struct {
	mu sync.RWMutex

	id       string
	state    State
	progress int
	logs     []LogEntry
	maxLogs  int
	warnings []string
	err      error
	result   *Result

	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}

	observer Observer
	now      func() time.Time
}

// Status is a point-in-time snapshot of a Run.
type Status struct {
	RunID      string     `json:"run_id"`
	State      State      `json:"state"`
	Progress   int        `json:"progress"`
	Logs       []LogEntry `json:"logs"`
	Warnings   []string   `json:"warnings,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  Kind       `json:"error_kind,omitempty"`
	ErrorStage State      `json:"error_stage,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func newRun(id string, observer Observer, now func() time.Time) *Run {
	if observer == nil {
		observer = nopObserver{}
	}
	if now == nil {
		now = time.Now
	}
	return &Run{
		id:        id,
		state:     StateIdle,
		logs:      make([]LogEntry, 0),
		maxLogs:   config.MaxRunLogs,
		startedAt: now(),
		done:      make(chan struct{}),
		observer:  observer,
		now:       now,
	}
}

// ID returns the run ID.
func (r *Run) ID() string { return r.id }

// Done is closed once the run succeeds or fails.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result returns the output of a succeeded run.
func (r *Run) Result() (*Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.result != nil
}

// Err returns the failure of a failed run.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Status returns a snapshot of the run.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		RunID:     r.id,
		State:     r.state,
		Progress:  r.progress,
		Logs:      append([]LogEntry{}, r.logs...),
		Warnings:  append([]string(nil), r.warnings...),
		StartedAt: r.startedAt,
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		st.FinishedAt = &finished
	}
	if r.err != nil {
		st.Error = r.err.Error()
		if pe, ok := r.err.(*Error); ok {
			st.ErrorKind = pe.Kind
			st.ErrorStage = pe.Stage
		}
	}
	return st
}

// enter moves the run to state and logs message.
func (r *Run) enter(state State, message string) {
	r.mu.Lock()
	r.state = state
	entry := r.appendLogLocked(message)
	ev := r.eventLocked(entry.Message, false)
	r.mu.Unlock()

	r.observer.OnEvent(ev)
}

// logf appends a debug log line.
func (r *Run) logf(format string, args ...any) {
	r.mu.Lock()
	entry := r.appendLogLocked(fmt.Sprintf(format, args...))
	ev := r.eventLocked(entry.Message, false)
	r.mu.Unlock()

	r.observer.OnEvent(ev)
}

// advance raises progress to p. Lower values are ignored, and 100 is
// reserved for success.
func (r *Run) advance(p int) {
	if p > config.ProgressOutputRead {
		p = config.ProgressOutputRead
	}
	r.mu.Lock()
	if p <= r.progress {
		r.mu.Unlock()
		return
	}
	r.progress = p
	ev := r.eventLocked("", false)
	r.mu.Unlock()

	r.observer.OnEvent(ev)
}

// scaled maps a fraction in [0,1] onto the progress slice [from,to].
func (r *Run) scaled(from, to int) func(float64) {
	return func(f float64) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		r.advance(from + int(f*float64(to-from)))
	}
}

// warn records a non-fatal problem.
func (r *Run) warn(message string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, message)
	entry := r.appendLogLocked("Warning: " + message)
	ev := r.eventLocked(entry.Message, true)
	r.mu.Unlock()

	r.observer.OnEvent(ev)
}

func (r *Run) succeed(res *Result) {
	r.mu.Lock()
	r.state = StateSucceeded
	r.progress = config.ProgressComplete
	entry := r.appendLogLocked("Reel generated successfully")
	res.Logs = append([]LogEntry{}, r.logs...)
	res.Warnings = append([]string(nil), r.warnings...)
	r.result = res
	r.finishedAt = entry.Timestamp
	ev := r.eventLocked(entry.Message, false)
	ev.Result = res
	r.mu.Unlock()

	r.observer.OnEvent(ev)
	close(r.done)
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	r.state = StateFailed
	r.err = err
	entry := r.appendLogLocked(fmt.Sprintf("Error: %v", err))
	r.finishedAt = entry.Timestamp
	ev := r.eventLocked(entry.Message, false)
	ev.Err = err
	r.mu.Unlock()

	r.observer.OnEvent(ev)
	close(r.done)
}

func (r *Run) appendLogLocked(message string) LogEntry {
	entry := LogEntry{Timestamp: r.now(), Message: message}
	r.logs = append(r.logs, entry)
	if len(r.logs) > r.maxLogs {
		r.logs = r.logs[len(r.logs)-r.maxLogs:]
	}
	return entry
}

func (r *Run) eventLocked(message string, warning bool) Event {
	return Event{
		RunID:    r.id,
		State:    r.state,
		Progress: r.progress,
		Message:  message,
		Warning:  warning,
		Time:     r.now(),
	}
}
