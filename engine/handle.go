package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Opener creates the engine behind a Handle.
type Opener func(ctx context.Context) (Engine, error)

// Handle owns one lazily opened Engine and leases it to a single run at a
// time. A successful open is reused until Close; a failed open is retried
// by the next Acquire.
type Handle struct {
	open  Opener
	lease chan struct{}

	mu     sync.Mutex
	engine Engine
	closed bool
}

// NewHandle returns a handle that opens its engine with open on first use.
func NewHandle(open Opener) *Handle {
	return &Handle{open: open, lease: make(chan struct{}, 1)}
}

// Acquire waits for exclusive use of the engine, opening it if needed. The
// returned release func must be called once the run is done with the engine;
// calling it more than once is harmless.
func (h *Handle) Acquire(ctx context.Context) (Engine, func(), error) {
	select {
	case h.lease <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: waiting for engine: %w", ErrInitFailed, ctx.Err())
	}

	var once sync.Once
	release := func() { once.Do(func() { <-h.lease }) }

	eng, err := h.get(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	return eng, release, nil
}

func (h *Handle) get(ctx context.Context) (Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, ErrClosed)
	}
	if h.engine != nil {
		return h.engine, nil
	}

	eng, err := h.open(ctx)
	if err != nil {
		if errors.Is(err, ErrInitFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	h.engine = eng
	return eng, nil
}

// Opened reports whether the engine has been opened.
func (h *Handle) Opened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine != nil
}

// Close closes the engine if it was opened and it implements io.Closer.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if c, ok := h.engine.(io.Closer); ok {
		h.engine = nil
		return c.Close()
	}
	h.engine = nil
	return nil
}
