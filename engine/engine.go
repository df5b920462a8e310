// Package engine drives ffmpeg as the media engine for reel encoding: it owns
// a private working directory, stages named inputs into it, runs ffmpeg
// argument lists against it and reads named outputs back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInitFailed      = errors.New("media engine init failed")
	ErrStagingFailed   = errors.New("media engine staging failed")
	ErrExecutionFailed = errors.New("media engine execution failed")
	ErrReadFailed      = errors.New("media engine read failed")
	ErrDecodeFailed    = errors.New("audio decode failed")
	ErrClosed          = errors.New("media engine closed")
)

// ProgressFunc receives the completed fraction of an execution, in [0,1].
type ProgressFunc func(fraction float64)

// Command is one engine invocation: an ordered ffmpeg argument list plus the
// expected output duration used to turn engine timestamps into fractions.
type Command struct {
	Args     []string
	Duration time.Duration
}

// Engine is the working-set contract the reel pipeline relies on. Names are
// flat file names inside the engine's workspace.
type Engine interface {
	Stage(ctx context.Context, name string, data []byte) error
	Execute(ctx context.Context, cmd Command, progress ProgressFunc) error
	Read(ctx context.Context, name string) ([]byte, error)
	// Release deletes names best-effort and reports every failure joined.
	Release(ctx context.Context, names ...string) error
}

// ExecError describes a failed engine execution.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: exit code %d", ErrExecutionFailed, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExecError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecutionFailed}
	}
	return []error{ErrExecutionFailed, e.Err}
}

// CommandLine renders the argument list for logs.
func (e *ExecError) CommandLine() string {
	return strings.Join(e.Args, " ")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
