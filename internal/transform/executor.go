package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-catalog/internal/logging"
)

// Command is one external tool invocation, built by the typed constructors
// in this package. Keeping argument construction separate from execution
// lets orchestration code run against a mock Executor in tests.
type Command struct {
	Name string
	Args []string
}

// String renders the command for logs.
func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Executor runs an external command and returns its captured stdout.
// Invocations are blocking; callers must never run them on a
// request-serving goroutine.
type Executor interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// Runner is the production Executor backed by os/exec.
type Runner struct{}

// NewRunner creates an exec-backed Executor.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the command, returning stdout. On failure stderr is folded
// into the returned error.
func (r *Runner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	start := time.Now()
	logging.Debug("Running: %s", cmd)

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w - %s", cmd.Name, err, strings.TrimSpace(stderr.String()))
	}

	logging.Debug("%s finished in %v", cmd.Name, time.Since(start))
	return stdout.Bytes(), nil
}
