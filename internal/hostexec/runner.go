// SPDX-License-Identifier: MPL-2.0

package hostexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// maxCapturedOutput bounds how much stdout/stderr is retained per command.
// Package managers and make can be extremely chatty; only the tail matters
// for diagnostics.
const maxCapturedOutput = 64 << 10

// ErrCommandFailed is the sentinel wrapped by ExitError.
var ErrCommandFailed = errors.New("command failed")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// LookPathFunc resolves an executable name against the search path.
	LookPathFunc func(file string) (string, error)

	// Command describes a single host command invocation.
	Command struct {
		Name string
		Args []string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env entries are appended to the inherited environment.
		Env []string
	}

	// Result holds the captured output of a finished command.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}

	// Runner executes host commands and resolves executables.
	Runner interface {
		Run(ctx context.Context, c Command) (Result, error)
		LookPath(name string) (string, error)
	}

	// ExitError reports a command that started but exited non-zero.
	// It wraps ErrCommandFailed for errors.Is classification.
	ExitError struct {
		Command string
		Code    int
		Stderr  string
	}

	// ExecRunner is the production Runner backed by os/exec.
	ExecRunner struct {
		execCommand ExecCommandFunc
		lookPath    LookPathFunc
		logger      *log.Logger
	}

	// Option configures an ExecRunner during construction.
	Option func(*ExecRunner)

	// tailBuffer keeps only the last maxCapturedOutput bytes written to it.
	tailBuffer struct {
		buf bytes.Buffer
	}
)

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Error returns the failing command line, exit code, and the tail of stderr.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is.
func (e *ExitError) Unwrap() error { return ErrCommandFailed }

// WithExecCommand overrides the exec.Cmd factory, primarily for tests.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *ExecRunner) {
		r.execCommand = fn
	}
}

// WithLookPath overrides executable resolution, primarily for tests.
func WithLookPath(fn LookPathFunc) Option {
	return func(r *ExecRunner) {
		r.lookPath = fn
	}
}

// WithLogger sets the logger used for per-command debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *ExecRunner) {
		r.logger = l
	}
}

// NewExecRunner creates an ExecRunner with exec.CommandContext and
// exec.LookPath as defaults.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes c and waits for it to finish. Stdin is never attached, so any
// command that tries to prompt sees EOF instead of hanging the run.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := r.execCommand(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr tailBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", c.String(), "dir", c.Dir)

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Command: c.String(), Code: res.ExitCode, Stderr: res.Stderr}
	}

	// Start failures (binary missing, permission denied) and context
	// cancellation land here.
	res.ExitCode = -1
	return res, fmt.Errorf("running %s: %w", c.Name, err)
}

// LookPath resolves name against the current process search path.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return r.lookPath(name)
}

// Has reports whether name resolves through runner.
func Has(runner Runner, name string) bool {
	_, err := runner.LookPath(name)
	return err == nil
}

// HasAll reports whether every name resolves through runner.
func HasAll(runner Runner, names ...string) bool {
	for _, n := range names {
		if !Has(runner, n) {
			return false
		}
	}
	return true
}

// Missing returns the names that do not resolve through runner, in order.
func Missing(runner Runner, names ...string) []string {
	var missing []string
	for _, n := range names {
		if !Has(runner, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= maxCapturedOutput {
		b.buf.Reset()
		b.buf.Write(p[n-maxCapturedOutput:])
		return n, nil
	}
	if over := b.buf.Len() + n - maxCapturedOutput; over > 0 {
		b.buf.Next(over)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *tailBuffer) String() string { return b.buf.String() }

// lastLine returns the last non-empty line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
