// Package process provides abstractions for running the external Celeritas
// executables.
package process

import (
	"context"
	"time"
)

// Invoker runs one external executable to completion.
// This interface lets the orchestrator be tested with scripted fakes.
type Invoker interface {
	// Invoke runs the executable with args, feeding stdin when it is
	// non-nil. A non-zero exit status is reported in Result.ExitCode; the
	// error is non-nil only when the process could not be run at all.
	Invoke(ctx context.Context, args []string, stdin []byte) (Result, error)

	// Name returns a human-readable name for this process type.
	Name() string

	// Path returns the executable path.
	Path() string
}

// Result captures the outcome of a process execution.
type Result struct {
	ExitCode int
	Stdout   []byte // nil unless stdout capture was requested
	Duration time.Duration

	// StderrTail holds the last lines the process wrote to stderr.
	StderrTail []string
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}
