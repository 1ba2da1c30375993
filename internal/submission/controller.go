// Package submission implements the Submission Controller: it admits,
// orders, and dispatches submission execute requests under a bounded
// concurrency budget, producing a sealed ContainerExecution per request.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/forgecheck/grader/internal/container"
	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
	"github.com/forgecheck/grader/internal/scratch"
)

// compareSnapshotsCmd is the sandbox tool's compare-snapshots command,
// which the controller extends with any whitelisted execution arguments.
var compareSnapshotsCmd = []string{"forge", "snapshot", "--diff", "--check"}

// containerSrcPath is the conventional path inside the image where a
// submission's source tree is mounted; the entrypoint overlays it onto the
// project workspace and re-copies the test directory over it.
const containerSrcPath = "/workspace/submission"

// stderrTruncateBytes bounds how much stderr is retained on a TIMEOUT
// outcome.
const stderrTruncateBytes = 8 << 10

// Images resolves a project's current sandbox image.
type Images interface {
	LookupByProject(ctx context.Context, projectName string) (*domain.Project, error)
}

// ExecutionStore persists ContainerExecution history records.
type ExecutionStore interface {
	Insert(ctx context.Context, execution domain.ContainerExecution) error
}

// Request is a single submission execute request.
type Request struct {
	ProjectName   string
	Archive       []byte
	ExecutionArgs map[string]string
}

// Config configures a Controller.
type Config struct {
	Docker         *container.Client
	Scratch        *scratch.Manager
	Images         Images
	Executions     ExecutionStore
	Logger         *slog.Logger
	Concurrency    int
	DefaultTimeout time.Duration
	IdempotencyTTL time.Duration
	QueueDepth     int
}

// Controller admits submissions into a single FIFO queue and dispatches
// them to a fixed pool of workers, guaranteeing at most Concurrency
// containers from this runner are live against the engine at any instant.
type Controller struct {
	docker         *container.Client
	scratch        *scratch.Manager
	images         Images
	executions     ExecutionStore
	logger         *slog.Logger
	concurrency    int
	defaultTimeout time.Duration

	idempotency *idempotencyCache
	jobs        chan *job
	depth       atomic.Int32
}

type job struct {
	ctx      context.Context
	req      Request
	position int
	resultCh chan jobResult
}

type jobResult struct {
	execution domain.ContainerExecution
	err       error
}

// New builds a Controller from cfg. Call Start to spawn its worker pool.
func New(cfg Config) *Controller {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Controller{
		docker:         cfg.Docker,
		scratch:        cfg.Scratch,
		images:         cfg.Images,
		executions:     cfg.Executions,
		logger:         cfg.Logger,
		concurrency:    concurrency,
		defaultTimeout: cfg.DefaultTimeout,
		idempotency:    newIdempotencyCache(cfg.IdempotencyTTL),
		jobs:           make(chan *job, queueDepth),
	}
}

// Start spawns the worker pool. It returns once all workers have exited,
// which happens when ctx is canceled.
func (c *Controller) Start(ctx context.Context) {
	done := make(chan struct{}, c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(worker int) {
			c.workerLoop(ctx, worker)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < c.concurrency; i++ {
		<-done
	}
}

func (c *Controller) workerLoop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-c.jobs:
			if !ok {
				return
			}
			c.runJob(j)
		}
	}
}

// Submit enqueues req and blocks until it has been processed or ctx is
// canceled. Cancellation before dequeue is cheap; cancellation during the
// container run stops the container and the outcome becomes TIMEOUT.
func (c *Controller) Submit(ctx context.Context, req Request) (domain.ContainerExecution, error) {
	j := &job{
		ctx:      ctx,
		req:      req,
		position: int(c.depth.Load()) + 1,
		resultCh: make(chan jobResult, 1),
	}
	c.depth.Add(1)
	select {
	case c.jobs <- j:
	case <-ctx.Done():
		c.depth.Add(-1)
		return domain.ContainerExecution{}, ctx.Err()
	}

	select {
	case res := <-j.resultCh:
		return res.execution, res.err
	case <-ctx.Done():
		return domain.ContainerExecution{}, ctx.Err()
	}
}

// runJob executes a single submission's pipeline. A panic in the pipeline
// (most likely from a malformed parser input) is recovered here so it
// never leaks into another worker's goroutine; the submission is instead
// reported with an INTERNAL status.
func (c *Controller) runJob(j *job) {
	c.depth.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			j.resultCh <- jobResult{err: errkind.New(errkind.Internal, fmt.Sprintf("submission worker panic: %v", r))}
		}
	}()

	execution, err := c.process(j.ctx, j.req)
	j.resultCh <- jobResult{execution: execution, err: err}
}

func (c *Controller) newExecutionID() string {
	return uuid.NewString()
}
