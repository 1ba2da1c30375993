package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgecheck/grader/internal/bus"
	"github.com/forgecheck/grader/internal/container"
	"github.com/forgecheck/grader/internal/image"
	"github.com/forgecheck/grader/internal/runnersvc"
	"github.com/forgecheck/grader/internal/scratch"
	"github.com/forgecheck/grader/internal/store/mongo"
	"github.com/forgecheck/grader/internal/submission"
	"github.com/forgecheck/grader/pkg/config"
	"github.com/forgecheck/grader/pkg/logger"
)

// baselineDiscoveryCmd is run inside a project's freshly built image to
// produce the gas snapshot parser.GasSnapshot parses into the project's
// baseline test names.
var baselineDiscoveryCmd = []string{"forge", "snapshot"}

const (
	prefetchProjectUpload     = 2
	prefetchProjectRemoval    = 4
	metricsShutdownTimeout    = 10 * time.Second
	mongoConnectTimeout       = 10 * time.Second
	graceShutdownReadDeadline = 5 * time.Second
)

func main() {
	cfg := config.LoadRunnerConfig()
	log := logger.New("runner", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dockerClient, err := container.New(cfg.DockerHost)
	if err != nil {
		log.Error("failed to create docker client", "error", err)
		os.Exit(1)
	}
	defer dockerClient.Close()

	if err := dockerClient.Ping(ctx); err != nil {
		log.Error("docker ping failed", "error", err)
		os.Exit(1)
	}

	scratchMgr, err := scratch.New(cfg.ScratchRoot)
	if err != nil {
		log.Error("scratch init failed", "error", err, "root", cfg.ScratchRoot)
		os.Exit(1)
	}
	janitor := scratch.NewJanitor(scratchMgr, cfg.ScratchGCInterval, cfg.ScratchGCMaxAge, log)
	go janitor.Run(ctx)

	connectCtx, cancelConnect := context.WithTimeout(ctx, mongoConnectTimeout)
	mongoClient, err := mongo.Connect(connectCtx, cfg.MongoURI)
	cancelConnect()
	if err != nil {
		log.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	store := mongo.New(mongoClient.Database(cfg.MongoDatabase))

	images := image.New(image.Config{
		Docker:         dockerClient,
		Scratch:        scratchMgr,
		Projects:       store.Projects(),
		Executions:     store.Executions(),
		Logger:         log,
		TemplateFiles:  cfg.TemplateFiles,
		DiscoveryCmd:   baselineDiscoveryCmd,
		DefaultTimeout: cfg.DefaultTimeout,
	})

	submissions := submission.New(submission.Config{
		Docker:         dockerClient,
		Scratch:        scratchMgr,
		Images:         images,
		Executions:     store.Executions(),
		Logger:         log,
		Concurrency:    cfg.SubmissionQueue,
		DefaultTimeout: cfg.DefaultTimeout,
		IdempotencyTTL: cfg.IdempotencyWindow,
	})
	go submissions.Start(ctx)

	conn, err := bus.Dial(cfg.RabbitMQHost)
	if err != nil {
		log.Error("bus dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	svc := runnersvc.New(images, submissions, log)

	uploadConsumer, err := bus.NewConsumer(conn, "project-upload", prefetchProjectUpload, svc.HandleProjectUpload, log)
	if err != nil {
		log.Error("failed to build project-upload consumer", "error", err)
		os.Exit(1)
	}
	executeConsumer, err := bus.NewConsumer(conn, "submission-execute", cfg.SubmissionQueue, svc.HandleSubmissionExecute, log)
	if err != nil {
		log.Error("failed to build submission-execute consumer", "error", err)
		os.Exit(1)
	}
	removalConsumer, err := bus.NewConsumer(conn, "project-removal", prefetchProjectRemoval, svc.HandleProjectRemoval, log)
	if err != nil {
		log.Error("failed to build project-removal consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := uploadConsumer.Run(ctx); err != nil {
			log.Error("project-upload consumer stopped", "error", err)
		}
	}()
	go func() {
		if err := executeConsumer.Run(ctx); err != nil {
			log.Error("submission-execute consumer stopped", "error", err)
		}
	}()
	go func() {
		if err := removalConsumer.Run(ctx); err != nil {
			log.Error("project-removal consumer stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: graceShutdownReadDeadline,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("runner started", "metricsAddr", cfg.MetricsAddr, "concurrency", cfg.SubmissionQueue)
		errorCh <- metricsSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
		log.Info("runner stopped")
	case err := <-errorCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
			os.Exit(1)
		}
	}
}
