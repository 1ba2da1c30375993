// Package image implements the Image Manager: it builds and tracks one
// sandbox container image per project from a template archive.
package image

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgecheck/grader/internal/container"
	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
	"github.com/forgecheck/grader/internal/parser"
	"github.com/forgecheck/grader/internal/scratch"
)

// ProjectStore persists Project records. Implemented by the MongoDB-backed
// store in internal/store/mongo.
type ProjectStore interface {
	Upsert(ctx context.Context, project domain.Project) error
	Get(ctx context.Context, name string) (*domain.Project, error)
	Delete(ctx context.Context, name string) error
}

// ExecutionStore persists ContainerExecution history records.
type ExecutionStore interface {
	Insert(ctx context.Context, execution domain.ContainerExecution) error
}

// Manager builds and tracks sandbox images. Concurrent builds of the same
// project name are serialized via a per-project lock; builds of different
// projects proceed independently.
type Manager struct {
	docker         *container.Client
	scratch        *scratch.Manager
	projects       ProjectStore
	executions     ExecutionStore
	logger         *slog.Logger
	templateFiles  string
	discoveryCmd   []string
	defaultTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Config configures a Manager.
type Config struct {
	Docker         *container.Client
	Scratch        *scratch.Manager
	Projects       ProjectStore
	Executions     ExecutionStore
	Logger         *slog.Logger
	TemplateFiles  string
	DiscoveryCmd   []string
	DefaultTimeout time.Duration
}

// New builds a Manager from cfg.
func New(cfg Config) *Manager {
	return &Manager{
		docker:         cfg.Docker,
		scratch:        cfg.Scratch,
		projects:       cfg.Projects,
		executions:     cfg.Executions,
		logger:         cfg.Logger,
		templateFiles:  cfg.TemplateFiles,
		discoveryCmd:   cfg.DiscoveryCmd,
		defaultTimeout: cfg.DefaultTimeout,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(projectName string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[projectName]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectName] = l
	}
	return l
}

// BuildResult is the outcome of a successful template build.
type BuildResult struct {
	Project   domain.Project
	Execution domain.ContainerExecution
}

// Build implements §4.1's build algorithm. Concurrent calls for the same
// projectName are serialized; a caller observes either the pre-existing
// image or the freshly built one, never a partial state.
func (m *Manager) Build(ctx context.Context, projectName string, archiveData []byte) (BuildResult, error) {
	lock := m.lockFor(projectName)
	lock.Lock()
	defer lock.Unlock()

	scratchID := fmt.Sprintf("%s_creation_%d", projectName, time.Now().UnixMilli())
	dir, err := m.scratch.Prepare(scratchID)
	if err != nil {
		return BuildResult{}, errkind.Wrap(errkind.Internal, "prepare scratch directory", err)
	}
	defer m.scratch.Cleanup(dir)

	projectDir, err := extractTemplate(archiveData, dir)
	if err != nil {
		return BuildResult{}, err
	}
	if err := overlayTemplateFiles(m.templateFiles, projectDir); err != nil {
		return BuildResult{}, errkind.Wrap(errkind.Internal, "overlay template files", err)
	}

	tag := projectName + ":latest"
	var buildLog []string
	buildErr := m.docker.BuildImage(ctx, projectDir, tag, nil, func(line string) {
		buildLog = append(buildLog, line)
	})
	if buildErr != nil {
		_ = m.docker.RemoveImage(ctx, tag)
		return BuildResult{}, errkind.Wrap(errkind.ImageBuild, "image build failed", buildErr)
	}

	execution, testOutput, err := m.discover(ctx, projectName, tag)
	if err != nil {
		_ = m.docker.RemoveImage(ctx, tag)
		return BuildResult{}, err
	}

	project := domain.Project{
		Name:          projectName,
		Tag:           tag,
		BuiltAt:       time.Now(),
		BaselineTests: testOutput.TestNames(),
	}
	if err := m.projects.Upsert(ctx, project); err != nil {
		return BuildResult{}, errkind.Wrap(errkind.Internal, "persist project record", err)
	}
	if err := m.executions.Insert(ctx, execution); err != nil {
		m.logger.Warn("failed to persist build execution record", "project", projectName, "error", err)
	}

	return BuildResult{Project: project, Execution: execution}, nil
}

// discover runs the baseline discovery container and parses its output.
func (m *Manager) discover(ctx context.Context, projectName, tag string) (domain.ContainerExecution, domain.TestOutput, error) {
	name := fmt.Sprintf("%s_discovery_%d", projectName, time.Now().UnixMilli())
	timeout := m.defaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	started := time.Now()
	result, err := m.docker.Run(ctx, container.RunOptions{
		Name:    name,
		Image:   tag,
		Command: m.discoveryCmd,
		Timeout: timeout,
	})
	if err != nil {
		return domain.ContainerExecution{}, domain.TestOutput{}, errkind.Wrap(errkind.BaselineDiscovery, "baseline discovery container failed to run", err)
	}

	execution := domain.ContainerExecution{
		ID:        name,
		Project:   projectName,
		Purpose:   domain.PurposeProjectCreation,
		StartedAt: started,
	}

	if result.Status != domain.StatusPurposelyStopped {
		execution.Seal(domain.StatusInternal, time.Now())
		execution.Stderr = result.Stderr
		execution.ExitCode = result.ExitCode
		return execution, domain.TestOutput{}, errkind.New(errkind.BaselineDiscovery,
			fmt.Sprintf("baseline discovery exited with unexpected status %s", result.Status))
	}

	testOutput := parser.GasSnapshot(result.Stdout)
	execution.Output = testOutput
	execution.Seal(domain.StatusSuccess, time.Now())
	return execution, testOutput, nil
}

// Remove deletes the image and Project record. History records are
// retained but orphaned (their project reference remains dangling by
// design — audit trail).
func (m *Manager) Remove(ctx context.Context, projectName string) error {
	lock := m.lockFor(projectName)
	lock.Lock()
	defer lock.Unlock()

	project, err := m.projects.Get(ctx, projectName)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "lookup project for removal", err)
	}
	if project == nil {
		return errkind.New(errkind.NotFound, fmt.Sprintf("project %q not found", projectName))
	}
	if err := m.docker.RemoveImage(ctx, project.Tag); err != nil {
		return errkind.Wrap(errkind.Internal, "remove image", err)
	}
	if err := m.projects.Delete(ctx, projectName); err != nil {
		return errkind.Wrap(errkind.Internal, "delete project record", err)
	}
	return nil
}

// LookupByProject returns the current image record for projectName, or nil
// if none exists.
func (m *Manager) LookupByProject(ctx context.Context, projectName string) (*domain.Project, error) {
	return m.projects.Get(ctx, projectName)
}
