// Package jobs keeps asynchronous reel runs addressable by ID until they are
// swept by the janitor.
package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"reelgen/config"
	"reelgen/pipeline"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown or swept run IDs.
	ErrNotFound = errors.New("run not found")
	// ErrDuplicateID is returned when a run ID is already registered.
	ErrDuplicateID = errors.New("run id already in use")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("registry closed")
)

// Starter launches a run in the background.
type Starter interface {
	Start(ctx context.Context, req pipeline.Request, observer pipeline.Observer) *pipeline.Run
}

// CompletionFunc is invoked once per run after it reaches a terminal state.
type CompletionFunc func(ctx context.Context, run *pipeline.Run)

// Registry tracks runs started through it.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*pipeline.Run

	starter   Starter
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	hooks   []CompletionFunc
	janitor *cron.Cron
}

// Options configures a Registry.
type Options struct {
	Retention time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewRegistry builds a Registry. Runs outlive the request that submitted
// them and are canceled by Close.
func NewRegistry(starter Starter, opts Options) *Registry {
	if opts.Retention <= 0 {
		opts.Retention = config.DefaultRunRetention
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		runs:      make(map[string]*pipeline.Run),
		starter:   starter,
		retention: opts.Retention,
		logger:    opts.Logger,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnComplete registers fn to run after every run finishes. Hooks run in
// registration order on the run's watcher goroutine.
func (r *Registry) OnComplete(fn CompletionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Submit starts req and returns its run ID. An empty req.RunID gets a new
// UUID.
func (r *Registry) Submit(req pipeline.Request) (string, error) {
	req.RunID = pipeline.NormalizeRunID(req.RunID)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	if _, exists := r.runs[req.RunID]; exists {
		r.mu.Unlock()
		return "", ErrDuplicateID
	}
	run := r.starter.Start(r.ctx, req, nil)
	r.runs[run.ID()] = run
	hooks := append([]CompletionFunc(nil), r.hooks...)
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info("run submitted", zap.String("run_id", run.ID()))

	go func() {
		defer r.wg.Done()
		<-run.Done()
		st := run.Status()
		r.logger.Info("run finished",
			zap.String("run_id", st.RunID),
			zap.String("state", string(st.State)),
			zap.Int("warnings", len(st.Warnings)),
		)
		for _, hook := range hooks {
			hook(r.ctx, run)
		}
	}()
	return run.ID(), nil
}

// Get returns the run registered under id.
func (r *Registry) Get(id string) (*pipeline.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run, nil
}

// Status returns a snapshot of the run registered under id.
func (r *Registry) Status(id string) (pipeline.Status, error) {
	run, err := r.Get(id)
	if err != nil {
		return pipeline.Status{}, err
	}
	return run.Status(), nil
}

// List returns snapshots of every tracked run, newest first.
func (r *Registry) List() []pipeline.Status {
	r.mu.RLock()
	out := make([]pipeline.Status, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Status())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Sweep forgets runs that finished more than the retention period ago and
// returns how many were removed. Active runs are never swept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, run := range r.runs {
		st := run.Status()
		if st.FinishedAt != nil && st.FinishedAt.Before(cutoff) {
			delete(r.runs, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps on schedule, a cron spec such as "@every 5m".
func (r *Registry) StartJanitor(schedule string) error {
	if schedule == "" {
		schedule = config.JanitorSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if n := r.Sweep(); n > 0 {
			r.logger.Info("swept finished runs", zap.Int("removed", n))
		}
	}); err != nil {
		return err
	}

	r.mu.Lock()
	r.janitor = c
	r.mu.Unlock()

	c.Start()
	r.logger.Info("run janitor started", zap.String("schedule", schedule))
	return nil
}

// Close stops the janitor, cancels active runs and waits for completion
// hooks to return, or for ctx to end.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	janitor := r.janitor
	r.mu.Unlock()

	if janitor != nil {
		<-janitor.Stop().Done()
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
