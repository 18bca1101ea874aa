package orchestrator

import (
	"errors"
	"fmt"

	"github.com/celeritas-project/demo-loop-driver/internal/config"
)

// Exit codes owned by the driver itself.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError reports a child process that exited non-zero. Its code is
// propagated as the driver's own exit status.
type ExitError struct {
	Stage Stage
	Name  string
	Code  int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed with error %d", e.Name, e.Code)
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var usageErr *config.UsageError
	if errors.As(err, &usageErr) {
		return ExitUsage
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return ExitFailure
}
