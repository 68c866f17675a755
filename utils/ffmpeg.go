package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"narrator/logging"
	"narrator/models"
)

// ErrMissingOutput is returned when a step exits cleanly without producing
// the file the next step depends on.
var ErrMissingOutput = errors.New("expected output file was not produced")

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	// Output is the file the command must leave behind; checked after a
	// successful exit when non-empty.
	Output string
	// Stream passes the process output through for diagnostics.
	Stream bool
	// Capture keeps stdout in Result.Stdout.
	Capture bool
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, arg := range c.Args {
		if arg == "" || strings.ContainsAny(arg, " \t'\";|") {
			parts = append(parts, fmt.Sprintf("%q", arg))
			continue
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Result reports how a process ended.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Runner executes external commands. Implementations return an error only
// when the process could not be run at all; a non-zero exit is reported via
// Result.ExitCode and left to the caller.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError describes an external tool that exited with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewExecRunner creates a runner that streams to the process's stdout/stderr
// when a command asks for it.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		logger: logging.NewComponentLogger(logger, "process"),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Stream {
		r.logger.Info("running command", logging.String("command", cmd.String()))
	} else {
		r.logger.Debug("running command", logging.String("command", cmd.String()))
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	var stdout, stderr bytes.Buffer
	switch {
	case cmd.Stream:
		c.Stdout = r.stdout
		c.Stderr = io.MultiWriter(r.stderr, &stderr)
		if cmd.Capture {
			c.Stdout = io.MultiWriter(r.stdout, &stdout)
		}
	default:
		c.Stderr = &stderr
		if cmd.Capture {
			c.Stdout = &stdout
		}
	}

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %s: %w", cmd.Name, err)
	}
	return res, nil
}

// RunChecked runs cmd and converts a non-zero exit or a missing output file
// into an error. Every render stage goes through here so that a stage only
// starts after its predecessor succeeded and left its file behind.
func RunChecked(ctx context.Context, runner Runner, cmd Command) (Result, error) {
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Command: cmd.Name, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	if cmd.Output != "" && !FileExists(cmd.Output) {
		return res, fmt.Errorf("%s: %w: %s", cmd.Name, ErrMissingOutput, cmd.Output)
	}
	return res, nil
}

// SerializeFilterChain renders a filter chain in ffmpeg's filtergraph syntax:
// stages are separated by ';' and each reads "[in]...filter=k=v:k=v[out]".
func SerializeFilterChain(chain models.FilterChain) string {
	parts := make([]string, 0, len(chain.Stages))
	for _, stage := range chain.Stages {
		var b strings.Builder
		for _, in := range stage.Inputs {
			b.WriteString("[" + in + "]")
		}
		b.WriteString(stage.Filter)
		if len(stage.Options) > 0 {
			opts := make([]string, 0, len(stage.Options))
			for _, opt := range stage.Options {
				if opt.Key == "" {
					opts = append(opts, opt.Value)
					continue
				}
				opts = append(opts, opt.Key+"="+opt.Value)
			}
			b.WriteString("=" + strings.Join(opts, ":"))
		}
		if stage.Output != "" {
			b.WriteString("[" + stage.Output + "]")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ";")
}

// FormatSeconds prints a duration for command-line arguments.
func FormatSeconds(seconds float64) string {
	return fmt.Sprintf("%.6f", seconds)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
