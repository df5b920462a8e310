package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type nopEngine struct{ closed atomic.Bool }

func (*nopEngine) Stage(context.Context, string, []byte) error           { return nil }
func (*nopEngine) Execute(context.Context, Command, ProgressFunc) error { return nil }
func (*nopEngine) Read(context.Context, string) ([]byte, error)         { return nil, nil }
func (*nopEngine) Release(context.Context, ...string) error             { return nil }
func (e *nopEngine) Close() error                                       { e.closed.Store(true); return nil }

func TestHandleOpensOnceAndReuses(t *testing.T) {
	var opens atomic.Int32
	eng := &nopEngine{}
	h := NewHandle(func(context.Context) (Engine, error) {
		opens.Add(1)
		return eng, nil
	})

	if h.Opened() {
		t.Fatal("handle must open lazily")
	}
	for i := 0; i < 3; i++ {
		got, release, err := h.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if got != eng {
			t.Fatal("expected the same engine")
		}
		release()
		release()
	}
	if opens.Load() != 1 {
		t.Fatalf("expected a single open, got %d", opens.Load())
	}

	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !eng.closed.Load() {
		t.Fatal("expected engine closed")
	}
	if _, _, err := h.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestHandleRetriesFailedOpen(t *testing.T) {
	var attempts atomic.Int32
	h := NewHandle(func(context.Context) (Engine, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("ffmpeg missing")
		}
		return &nopEngine{}, nil
	})

	if _, _, err := h.Acquire(context.Background()); !errors.Is(err, ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed, got %v", err)
	}
	// The failed attempt must have given the lease back.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, release, err := h.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	release()
}

func TestHandleSerializesRuns(t *testing.T) {
	h := NewHandle(func(context.Context) (Engine, error) { return &nopEngine{}, nil })

	var (
		active, peak atomic.Int32
		wg           sync.WaitGroup
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := h.Acquire(context.Background())
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Fatalf("expected one holder at a time, saw %d", peak.Load())
	}
}

func TestHandleAcquireHonorsContext(t *testing.T) {
	h := NewHandle(func(context.Context) (Engine, error) { return &nopEngine{}, nil })
	_, release, err := h.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := h.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error while leased, got %v", err)
	}
}
