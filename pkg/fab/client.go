// Package fab drives the external fab control-plane CLI as a subprocess.
// It is the single chokepoint deciding whether a failed command is fatal or
// tolerated: resource creation is best-effort ("already exists" is benign),
// so failures are logged and classified rather than raised by default.
package fab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Status classifies the outcome of one control-plane command.
type Status string

const (
	// StatusOK means the command exited zero with a clean error stream.
	StatusOK Status = "ok"

	// StatusTolerated means the command failed but the failure class is
	// expected (typically "already exists" on create) and the run continues.
	StatusTolerated Status = "tolerated"

	// StatusFatal means the command failed and the caller required success.
	StatusFatal Status = "fatal"
)

// Result is the typed outcome of one fab invocation.
type Result struct {
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns the last non-empty line of stdout, trimmed. The fab CLI
// emits scalar query results as the final stdout line, possibly preceded by
// incidental log output.
func (r Result) Output() string {
	lines := strings.Split(r.Stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

// CommandError reports a fatal control-plane command failure.
type CommandError struct {
	// Command is the fab command string, empty when it carries credentials.
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := "fab command failed"
	if e.Command != "" {
		msg = fmt.Sprintf("fab command %q failed", e.Command)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: exit code %d: %s", msg, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Unwrap returns the underlying error for error chain inspection.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes the fab binary with the given arguments and returns its
// output streams and exit code. err is reserved for failures to run the
// process at all; a nonzero exit is reported through exitCode.
type Runner func(ctx context.Context, args ...string) (stdout, stderr string, exitCode int, err error)

// CallOptions control how a single command is executed and reported.
type CallOptions struct {
	// CaptureOutput returns the trimmed last stdout line from Run.
	CaptureOutput bool

	// IncludeSecrets marks the command as carrying credential material.
	// The command text is then withheld from log echoing; the gateway does
	// not redact the subprocess output streams.
	IncludeSecrets bool

	// SilentlyContinue demotes failure diagnostics to debug level, for
	// commands whose failure is fully expected.
	SilentlyContinue bool

	// MustSucceed escalates any failure to a fatal CommandError.
	MustSucceed bool
}

// Client executes fab commands. The zero value runs the real fab binary
// found on PATH.
type Client struct {
	// Binary overrides the fab executable name.
	Binary string

	// Runner overrides subprocess execution, mainly for tests.
	Runner Runner
}

func (c *Client) runner() Runner {
	if c.Runner != nil {
		return c.Runner
	}
	bin := c.Binary
	if bin == "" {
		bin = "fab"
	}
	return func(ctx context.Context, args ...string) (string, string, int, error) {
		return runBinary(ctx, bin, args...)
	}
}

// Exec runs one fab command to completion and classifies the outcome.
// Tolerated failures return a nil error; the diagnostic text is logged
// inline so operators can audit benign-vs-real failures afterwards.
func (c *Client) Exec(ctx context.Context, command string, opts CallOptions) (Result, error) {
	echo := command
	if opts.IncludeSecrets {
		echo = ""
	}

	start := time.Now()
	log.Debug().Str("command", echo).Msg("running fab command")

	stdout, stderr, exitCode, err := c.runner()(ctx, "-c", command)
	res := Result{Status: StatusOK, ExitCode: exitCode, Stdout: stdout, Stderr: stderr}

	if err != nil {
		res.Status = StatusFatal
		return res, &CommandError{Command: echo, Err: err}
	}

	if exitCode != 0 || strings.TrimSpace(stderr) != "" {
		if opts.MustSucceed {
			res.Status = StatusFatal
			log.Error().
				Str("command", echo).
				Int("exit_code", exitCode).
				Str("stderr", strings.TrimSpace(stderr)).
				Msg("fab command failed")
			return res, &CommandError{Command: echo, ExitCode: exitCode, Stderr: stderr}
		}

		res.Status = StatusTolerated
		ev := log.Warn()
		if opts.SilentlyContinue {
			ev = log.Debug()
		}
		ev.Str("command", echo).
			Int("exit_code", exitCode).
			Str("stderr", strings.TrimSpace(stderr)).
			Str("stdout", strings.TrimSpace(stdout)).
			Msg("fab command failed, continuing")
	}

	log.Debug().
		Str("command", echo).
		Str("status", string(res.Status)).
		Dur("duration", time.Since(start)).
		Msg("fab command finished")

	return res, nil
}

// Run executes a command and, when opts.CaptureOutput is set, returns the
// trimmed last stdout line.
func (c *Client) Run(ctx context.Context, command string, opts CallOptions) (string, error) {
	res, err := c.Exec(ctx, command, opts)
	if err != nil {
		return "", err
	}
	if opts.CaptureOutput {
		return res.Output(), nil
	}
	return "", nil
}

// runBinary is the real subprocess runner.
func runBinary(ctx context.Context, binary string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}
