package rollback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Status is the tri-state result of a rollback attempt
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Result describes the outcome of a single rollback invocation
type Result struct {
	Status   Status
	Stderr   string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the rollback completed with exit code 0
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// HelmExecutor rolls releases back by running the helm CLI
type HelmExecutor struct {
	// Binary is the helm executable (default: "helm")
	Binary string

	// command builds the process; overridden in tests
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewHelmExecutor creates a rollback executor for the given helm binary
func NewHelmExecutor(binary string) *HelmExecutor {
	if binary == "" {
		binary = "helm"
	}
	return &HelmExecutor{
		Binary:  binary,
		command: exec.CommandContext,
	}
}

// Rollback runs `helm rollback <release> --namespace <namespace>` and kills it
// once timeout elapses. It never retries.
func (h *HelmExecutor) Rollback(ctx context.Context, release, namespace string, timeout time.Duration) Result {
	start := time.Now()

	if release == "" {
		return Result{Status: StatusFailed, Err: errors.New("no release specified"), Duration: time.Since(start)}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := h.command(execCtx, h.Binary, "rollback", release, "--namespace", namespace)

	// bound the wait for output pipes held open by helm's children after a kill
	cmd.WaitDelay = time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Status = StatusTimedOut
		result.Err = fmt.Errorf("helm rollback of %s timed out after %v", release, timeout)
	case err != nil:
		result.Status = StatusFailed
		result.Err = fmt.Errorf("helm rollback of %s failed: %w", release, err)
	default:
		result.Status = StatusSucceeded
	}

	return result
}
