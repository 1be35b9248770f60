package probe

import (
	"context"
	"errors"
	"os/exec"
)

// Runner executes a program and returns its combined output and exit code.
// A non-nil error means the program could not be run at all; a non-zero exit
// is reported through exitCode.
type Runner func(ctx context.Context, name string, args ...string) (output []byte, exitCode int, err error)

// ExecRunner runs the program with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, exitErr.ExitCode(), nil
	}
	return out, -1, err
}
