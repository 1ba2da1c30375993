package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgecheck/grader/internal/container"
	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
	"github.com/forgecheck/grader/internal/image"
	"github.com/forgecheck/grader/internal/parser"
)

// process implements §4.3's per-submission algorithm: resolve the project
// image, extract and validate the submission archive, compute the
// execution command, run it, and parse the result into a TestOutput.
func (c *Controller) process(ctx context.Context, req Request) (domain.ContainerExecution, error) {
	project, err := c.images.LookupByProject(ctx, req.ProjectName)
	if err != nil {
		return domain.ContainerExecution{}, errkind.Wrap(errkind.Internal, "lookup project", err)
	}
	if project == nil {
		return domain.ContainerExecution{}, errkind.New(errkind.ProjectNotFound, fmt.Sprintf("project %q not found", req.ProjectName))
	}

	execArgs := buildExecArgs(nil, req.ExecutionArgs)
	key := submissionKey(req.ProjectName, req.Archive, execArgs)
	if cached, ok := c.idempotency.get(key); ok {
		return cached, nil
	}

	execution, err := c.runSubmission(ctx, *project, req.Archive, execArgs)
	if err != nil {
		return domain.ContainerExecution{}, err
	}

	c.idempotency.put(key, execution)
	if err := c.executions.Insert(ctx, execution); err != nil {
		c.logger.Warn("failed to persist submission execution record", "project", req.ProjectName, "error", err)
	}
	return execution, nil
}

func (c *Controller) runSubmission(ctx context.Context, project domain.Project, archive []byte, execArgs []string) (domain.ContainerExecution, error) {
	scratchID := fmt.Sprintf("%s_submission_%d", project.Name, time.Now().UnixMilli())
	dir, err := c.scratch.Prepare(scratchID)
	if err != nil {
		return domain.ContainerExecution{}, errkind.Wrap(errkind.Internal, "prepare scratch directory", err)
	}
	defer c.scratch.Cleanup(dir)

	srcDir, err := image.ExtractSubmission(archive, dir)
	if err != nil {
		return domain.ContainerExecution{}, err
	}

	command := make([]string, 0, len(compareSnapshotsCmd)+len(execArgs))
	command = append(command, compareSnapshotsCmd...)
	command = append(command, execArgs...)

	name := fmt.Sprintf("%s_submission_%d_%s", project.Name, time.Now().UnixMilli(), c.newExecutionID()[:8])
	timeout := project.Timeout(c.defaultTimeout)

	started := time.Now()
	result, err := c.docker.Run(ctx, container.RunOptions{
		Name:             name,
		Image:            project.Tag,
		Command:          command,
		HostSrcDir:       srcDir,
		ContainerSrcPath: containerSrcPath,
		Timeout:          timeout,
	})
	if err != nil {
		return domain.ContainerExecution{}, classifyRunError(err)
	}

	execution := domain.ContainerExecution{
		ID:        c.newExecutionID(),
		Project:   project.Name,
		Purpose:   domain.PurposeSubmission,
		StartedAt: started,
		ExecArgs:  execArgs,
		ExitCode:  result.ExitCode,
	}

	switch result.Status {
	case domain.StatusSuccess:
		execution.Output = parser.Merge(parser.ForgeTest(result.Stdout), parser.GasDiff(result.Stdout))
	case domain.StatusPurposelyStopped:
		execution.Output = parser.GasSnapshot(result.Stdout)
		result.Status = domain.StatusSuccess
	case domain.StatusTimeout:
		execution.Stderr = truncate(result.Stderr, stderrTruncateBytes)
	default:
		execution.Stderr = result.Stderr
	}

	execution.Seal(result.Status, time.Now())
	return execution, nil
}

// classifyRunError maps a Container Executor failure onto the closed error
// taxonomy. A missing image is non-retryable for the caller, so it is
// surfaced as NOT_FOUND rather than the retryable DOCKER_UNAVAILABLE that
// covers a genuinely unreachable daemon (spec §4.2 Failure modes).
func classifyRunError(err error) error {
	if e, ok := errkind.As(err); ok {
		return e
	}
	if errors.Is(err, container.ErrImageMissing) {
		return errkind.Wrap(errkind.NotFound, "project image missing", err)
	}
	return errkind.Wrap(errkind.DockerUnavailable, "container executor failed", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
