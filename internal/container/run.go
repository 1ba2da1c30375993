package container

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/forgecheck/grader/internal/domain"
)

// PurposelyStoppedExitCode is the exit code the sandbox tool's entrypoint
// uses to signal a clean, snapshot-only termination (baseline discovery,
// not a submission test run).
const PurposelyStoppedExitCode = 3

// maxCapturedOutput bounds how much of a container's stdout/stderr is kept
// in memory; grading tool output does not legitimately exceed this.
const maxCapturedOutput = 4 << 20

// RunOptions describes a single container invocation.
type RunOptions struct {
	// Name is the unique container name, e.g. "<project>_submission_<epoch_ms>_<rand>".
	Name string
	// Image is the tag to run.
	Image string
	// Command overrides the image's default command; nil keeps the image default.
	Command []string
	// Env is passed through as container environment variables.
	Env []string
	// HostSrcDir, if non-empty, is bind-mounted read-write at ContainerSrcPath.
	HostSrcDir       string
	ContainerSrcPath string
	// Timeout bounds how long the container may run before it is stopped
	// and the result is reported as domain.StatusTimeout.
	Timeout time.Duration
}

// Result is the outcome of a single container run.
type Result struct {
	Status    domain.StatusCode
	ElapsedMs int64
	Stdout    string
	Stderr    string
	ExitCode  int64
}

// Run creates, starts, waits for, captures the output of, and removes a
// single container. It always removes the container before returning,
// regardless of the exit path.
func (c *Client) Run(ctx context.Context, opts RunOptions) (Result, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return Result{}, fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(opts.Image) == "" {
		return Result{}, fmt.Errorf("image name cannot be empty")
	}

	cfg := &container.Config{
		Image: opts.Image,
		Cmd:   opts.Command,
		Env:   opts.Env,
	}

	var binds []string
	if opts.HostSrcDir != "" {
		binds = []string{opts.HostSrcDir + ":" + opts.ContainerSrcPath}
	}
	hostCfg := &container.HostConfig{Binds: binds}

	created, err := c.inner.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		if isNotFound(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrImageMissing, opts.Image)
		}
		return Result{}, fmt.Errorf("container create: %w", err)
	}
	defer c.RemoveContainer(context.Background(), created.ID)

	start := time.Now()
	if err := c.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("container start: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	exitCode, timedOut, err := c.waitFor(runCtx, created.ID)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("wait for container: %w", err)
	}

	stdout, stderr := c.captureLogs(context.Background(), created.ID)

	status := translateExit(exitCode, timedOut)
	return Result{
		Status:    status,
		ElapsedMs: elapsed.Milliseconds(),
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  exitCode,
	}, nil
}

func (c *Client) waitFor(ctx context.Context, containerID string) (exitCode int64, timedOut bool, err error) {
	statusCh, errCh := c.inner.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case werr := <-errCh:
		if werr == nil {
			return 0, false, nil
		}
		if isNotFound(werr) {
			return 0, false, nil
		}
		return 0, false, werr
	case status := <-statusCh:
		return status.StatusCode, false, nil
	case <-ctx.Done():
		stopErr := c.stop(context.Background(), containerID)
		if stopErr != nil {
			return 0, true, stopErr
		}
		return 0, true, nil
	}
}

func (c *Client) stop(ctx context.Context, containerID string) error {
	timeoutSec := 5
	if err := c.inner.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeoutSec}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (c *Client) captureLogs(ctx context.Context, containerID string) (stdout, stderr string) {
	rc, err := c.inner.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", ""
	}
	defer rc.Close()

	var outBuf, errBuf bytes.Buffer
	limitedOut := &limitedWriter{w: &outBuf, limit: maxCapturedOutput}
	limitedErr := &limitedWriter{w: &errBuf, limit: maxCapturedOutput}
	_, _ = stdcopy.StdCopy(limitedOut, limitedErr, rc)
	return outBuf.String(), errBuf.String()
}

// RemoveContainer removes an existing container if it exists.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := c.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func translateExit(exitCode int64, timedOut bool) domain.StatusCode {
	switch {
	case timedOut:
		return domain.StatusTimeout
	case exitCode == 0:
		return domain.StatusSuccess
	case exitCode == PurposelyStoppedExitCode:
		return domain.StatusPurposelyStopped
	default:
		return domain.StatusApplicationError
	}
}

// limitedWriter caps how many bytes it accepts, discarding the remainder,
// so a runaway container cannot exhaust runner memory.
type limitedWriter struct {
	w       *bytes.Buffer
	limit   int
	written int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.limit {
		return len(p), nil
	}
	remaining := l.limit - l.written
	if len(p) > remaining {
		l.w.Write(p[:remaining])
		l.written = l.limit
		return len(p), nil
	}
	l.w.Write(p)
	l.written += len(p)
	return len(p), nil
}
