package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/forgecheck/grader/internal/apihttp"
	"github.com/forgecheck/grader/internal/bus"
	"github.com/forgecheck/grader/internal/frontsvc"
	"github.com/forgecheck/grader/internal/store/mongo"
	"github.com/forgecheck/grader/pkg/config"
	"github.com/forgecheck/grader/pkg/logger"
)

const (
	mongoConnectTimeout = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// replyOps lists the operations the front service expects a reply for.
// project-removal is one-way and needs no reply queue.
var replyOps = []string{"project-upload", "submission-execute"}

func main() {
	cfg := config.LoadFrontConfig()
	log := logger.New("front", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, mongoConnectTimeout)
	mongoClient, err := mongo.Connect(connectCtx, cfg.MongoURI)
	cancelConnect()
	if err != nil {
		log.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	store := mongo.New(mongoClient.Database(cfg.MongoDatabase))

	conn, err := bus.Dial(cfg.RabbitMQHost)
	if err != nil {
		log.Error("bus dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	instanceID := uuid.NewString()
	publisher, err := bus.NewPublisher(conn, instanceID, replyOps, log)
	if err != nil {
		log.Error("failed to build bus publisher", "error", err)
		os.Exit(1)
	}

	frontSvc := frontsvc.New(publisher, store.Messages(), log, cfg.BusRequestTimeout)
	router := apihttp.New(log, frontSvc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("front server starting", "addr", cfg.Addr, "instanceId", instanceID)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("front server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
