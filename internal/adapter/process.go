package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	m "faultline.dev/pkg/faultline/internal/model"
)

// waitDelay bounds how long Wait blocks on pipes after the process was killed.
const waitDelay = 5 * time.Second

// Command describes a subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Timeout time.Duration
}

// ProcessResult is the outcome of a subprocess that was started successfully.
type ProcessResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Duration time.Duration
}

// Success reports whether the process exited with status 0 before its deadline.
func (r ProcessResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Output returns stdout followed by stderr.
func (r ProcessResult) Output() string {
	return string(r.Stdout) + string(r.Stderr)
}

// ProcessRunner runs subprocesses.
type ProcessRunner interface {
	Run(ctx context.Context, command Command) (ProcessResult, error)
}

// LocalProcessRunner runs subprocesses with os/exec.
type LocalProcessRunner struct{}

// NewLocalProcessRunner constructs a LocalProcessRunner.
func NewLocalProcessRunner() *LocalProcessRunner {
	return &LocalProcessRunner{}
}

// Run starts the command and drains stdout and stderr concurrently so a chatty
// process can never block on a full pipe. A non-zero exit status is reported in
// the result, not as an error; errors are reserved for spawn and I/O failures.
func (r *LocalProcessRunner) Run(ctx context.Context, command Command) (ProcessResult, error) {
	if command.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	// #nosec G204 - commands are built by the adapters, not taken from user input
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(os.Environ(), command.Env...)
	cmd.WaitDelay = waitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w: stdout pipe for %s: %v", m.ErrInfrastructure, command.Name, err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w: stderr pipe for %s: %v", m.ErrInfrastructure, command.Name, err)
	}

	started := time.Now()

	if err := cmd.Start(); err != nil {
		return ProcessResult{}, fmt.Errorf("%w: start %s: %v", m.ErrInfrastructure, command.Name, err)
	}

	var stdout, stderr bytes.Buffer

	var drains errgroup.Group

	drains.Go(func() error {
		_, err := io.Copy(&stdout, stdoutPipe)
		return err
	})
	drains.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return err
	})

	drainErr := drains.Wait()
	waitErr := cmd.Wait()

	result := ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(started),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !result.TimedOut && ctx.Err() == nil {
			return result, fmt.Errorf("%w: wait %s: %v", m.ErrInfrastructure, command.Name, waitErr)
		}

		result.ExitCode = -1
		if exitErr != nil && exitErr.ExitCode() >= 0 {
			result.ExitCode = exitErr.ExitCode()
		}
	}

	if drainErr != nil && !result.TimedOut && ctx.Err() == nil {
		return result, fmt.Errorf("%w: read output of %s: %v", m.ErrInfrastructure, command.Name, drainErr)
	}

	if ctx.Err() != nil && !result.TimedOut {
		return result, ctx.Err()
	}

	return result, nil
}
