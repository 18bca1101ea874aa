package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/celeritas-project/demo-loop-driver/internal/logging"
)

// stderrTailLines is how many stderr lines are kept for failure reports.
const stderrTailLines = 20

// ExecConfig holds configuration for an ExecInvoker.
type ExecConfig struct {
	// Name identifies the process in logs ("geant-exporter", "demo-loop").
	Name string

	// BinaryPath is the executable to run.
	BinaryPath string

	// CaptureStdout collects stdout into Result.Stdout instead of passing
	// it through to Stdout.
	CaptureStdout bool

	// Stdout receives the child's stdout when it is not captured.
	Stdout io.Writer

	// Stderr receives a passthrough copy of the child's stderr. When nil,
	// stderr lines are logged instead.
	Stderr io.Writer

	Logger  *slog.Logger
	Verbose bool
}

// ExecInvoker implements Invoker with os/exec.
type ExecInvoker struct {
	config      ExecConfig
	passthrough bool
}

// NewExecInvoker creates an invoker for the given executable.
func NewExecInvoker(cfg ExecConfig) *ExecInvoker {
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	passthrough := cfg.Stderr != nil
	if !passthrough {
		cfg.Stderr = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecInvoker{config: cfg, passthrough: passthrough}
}

// Name returns the configured process name.
func (e *ExecInvoker) Name() string {
	return e.config.Name
}

// Path returns the executable path.
func (e *ExecInvoker) Path() string {
	return e.config.BinaryPath
}

// Invoke runs the executable and waits for it to exit.
func (e *ExecInvoker) Invoke(ctx context.Context, args []string, stdin []byte) (Result, error) {
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout bytes.Buffer
	if e.config.CaptureStdout {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = e.config.Stdout
	}

	stream := logging.NewStreamHandler(e.config.Name, e.config.Logger, e.config.Verbose, e.passthrough)
	cmd.Stderr = io.MultiWriter(e.config.Stderr, stream)

	e.config.Logger.Debug("process_starting",
		"process", e.config.Name,
		"cmd", CommandString(e.config.BinaryPath, args),
		"stdin_bytes", len(stdin),
	)

	start := time.Now()
	waitErr := cmd.Run()
	duration := time.Since(start)
	stream.Flush()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Result{Duration: duration}, fmt.Errorf("run %s (%s): %w", e.config.Name, e.config.BinaryPath, waitErr)
	}

	result := Result{
		ExitCode:   extractExitCode(waitErr),
		Duration:   duration,
		StderrTail: stream.RecentLines(stderrTailLines),
	}
	if e.config.CaptureStdout {
		result.Stdout = stdout.Bytes()
	}

	e.config.Logger.Debug("process_exited",
		"process", e.config.Name,
		"exit_code", result.ExitCode,
		"duration", duration.String(),
		"stdout_bytes", len(result.Stdout),
		"stderr_lines", stream.LineCount(),
	)

	return result, nil
}

// extractExitCode extracts the exit code from a wait error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	// Unknown error, assume exit code 1
	return 1
}
