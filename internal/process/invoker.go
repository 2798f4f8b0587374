package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Invoker runs a binary to completion and captures its output.
type Invoker struct {
	logger Logger
}

// NewInvoker creates an invoker. A nil logger discards log output.
func NewInvoker(logger Logger) *Invoker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Invoker{logger: logger}
}

// Run executes binary with args and waits for it to exit.
//
// Stdout and stderr share one buffer, so the returned text preserves the
// order in which the process wrote it. The exit status is ignored.
//
// Parameters:
//   - ctx: Cancelling kills the process
//   - binary: Executable path
//   - args: Arguments passed verbatim (no shell)
//
// Returns:
//   - string: Everything the process wrote, untrimmed
//   - error: ErrSpawnFailed if the process could not be started, ctx.Err()
//     if it was killed by cancellation, nil otherwise
func (i *Invoker) Run(ctx context.Context, binary string, args ...string) (string, error) {
	var out bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // Binary comes from validated config
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrSpawnFailed, binary, err)
	}

	err := cmd.Wait()

	i.logger.Debug("command finished",
		"binary", binary,
		"args", args,
		"exit_code", cmd.ProcessState.ExitCode(),
		"duration", time.Since(start),
		"bytes", out.Len(),
	)

	if ctx.Err() != nil {
		return out.String(), ctx.Err()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out.String(), fmt.Errorf("waiting for %s: %w", binary, err)
	}

	return out.String(), nil
}
