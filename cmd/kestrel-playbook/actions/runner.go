package actions

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes host utilities. Factored out so action tests run without
// touching the host firewall.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner shells out via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout := strings.TrimSpace(outBuf.String())
	stderr := strings.TrimSpace(errBuf.String())

	if err != nil {
		return stdout, stderr, fmt.Errorf("command failed: %s %s | stdout: %s | stderr: %s | %v",
			name, strings.Join(args, " "), stdout, stderr, err)
	}
	return stdout, stderr, nil
}
