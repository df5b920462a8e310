package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// stderrTail bounds the diagnostic output kept from a failed execution.
const stderrTail = 8 * 1024

// Options configures an FFmpeg engine.
type Options struct {
	// Binary is the ffmpeg executable name or path. Defaults to "ffmpeg".
	Binary string
	// WorkRoot is the parent of the private workspace. Defaults to os.TempDir().
	WorkRoot string
	Logger   *zap.Logger
}

// FFmpeg is an Engine backed by the ffmpeg binary and a private workspace directory.
type FFmpeg struct {
	binary  string
	dir     string
	logger  *zap.Logger
	mu      sync.Mutex
	closed  bool
	version string
}

// Open resolves the ffmpeg binary, checks that it runs and creates the
// workspace. Failures wrap ErrInitFailed.
func Open(ctx context.Context, opts Options) (*FFmpeg, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %w", ErrInitFailed, binary, err)
	}

	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s -version: %w", ErrInitFailed, path, err)
	}
	version := firstLine(string(out))

	dir, err := os.MkdirTemp(opts.WorkRoot, "reelgen-engine-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create workspace: %w", ErrInitFailed, err)
	}

	logger.Info("media engine ready", zap.String("binary", path), zap.String("version", version), zap.String("workspace", dir))
	return &FFmpeg{binary: path, dir: dir, logger: logger, version: version}, nil
}

// Dir returns the workspace directory.
func (f *FFmpeg) Dir() string { return f.dir }

// Version returns the first line of "ffmpeg -version".
func (f *FFmpeg) Version() string { return f.version }

func (f *FFmpeg) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid resource name %q", name)
	}
	return filepath.Join(f.dir, name), nil
}

func (f *FFmpeg) checkOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return nil
}

// Stage writes data under name. Independent names may be staged concurrently.
func (f *FFmpeg) Stage(ctx context.Context, name string, data []byte) error {
	if err := f.checkOpen(); err != nil {
		return fmt.Errorf("%w: %w", ErrStagingFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStagingFailed, name, err)
	}
	p, err := f.path(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStagingFailed, err)
	}

	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrStagingFailed, name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrStagingFailed, name, err)
	}
	return nil
}

// Execute runs ffmpeg with cmd.Args inside the workspace. Progress is read
// from "-progress pipe:1"; a non-zero exit returns *ExecError.
func (f *FFmpeg) Execute(ctx context.Context, cmd Command, progress ProgressFunc) error {
	if err := f.checkOpen(); err != nil {
		return &ExecError{Args: cmd.Args, ExitCode: -1, Err: err}
	}

	args := append([]string{"-hide_banner", "-nostats", "-progress", "pipe:1"}, cmd.Args...)
	c := exec.CommandContext(ctx, f.binary, args...)
	c.Dir = f.dir

	stderr := newTailBuffer(stderrTail)
	c.Stderr = stderr
	stdout, err := c.StdoutPipe()
	if err != nil {
		return &ExecError{Args: args, ExitCode: -1, Err: err}
	}

	f.logger.Debug("ffmpeg execute", zap.Strings("args", args))
	if err := c.Start(); err != nil {
		return &ExecError{Args: args, ExitCode: -1, Err: err}
	}

	// stdout must be drained before Wait.
	readProgress(stdout, cmd.Duration, progress)

	if err := c.Wait(); err != nil {
		execErr := &ExecError{Args: args, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			execErr.Err = ctxErr
		}
		f.logger.Warn("ffmpeg failed", zap.Int("exit_code", execErr.ExitCode), zap.String("stderr", lastLine(execErr.Stderr)))
		return execErr
	}
	return nil
}

// Read returns the contents of name.
func (f *FFmpeg) Read(ctx context.Context, name string) ([]byte, error) {
	if err := f.checkOpen(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, name, err)
	}
	p, err := f.path(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, name, err)
	}
	return data, nil
}

// Release removes every name, continuing past failures. Missing names are
// not an error.
func (f *FFmpeg) Release(_ context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		p, err := f.path(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("release %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close removes the workspace. Further calls on f fail with ErrClosed.
func (f *FFmpeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return os.RemoveAll(f.dir)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
