package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kk7453603/ragcore/internal/bootstrap"
	"github.com/kk7453603/ragcore/internal/config"
	"github.com/kk7453603/ragcore/internal/core/orchestrator"
	natsq "github.com/kk7453603/ragcore/internal/infrastructure/queue/nats"
	"github.com/kk7453603/ragcore/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		log.Printf("metrics listening on :%s", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSWorkerSubject)
	err = app.Queue.SubscribeTurnRequested(ctx, func(handlerCtx context.Context, req natsq.TurnRequest) error {
		workerMetrics.StartTurn()
		workerMetrics.ObserveQueueLag("worker", time.Since(req.RequestedAt))
		start := time.Now()

		turnCtx, cancel := context.WithTimeout(handlerCtx, cfg.TurnDeadline+10*time.Second)
		defer cancel()

		_, runErr := app.Orchestrator.Run(turnCtx, req.Query, orchestrator.Options{
			TurnID:      req.TurnID,
			MaxSubtasks: req.MaxSubtasks,
			MaxRetries:  req.MaxRetries,
			RequireWeb:  req.RequireWeb,
			Messages:    req.Messages,
		})

		workerMetrics.FinishTurn("worker", time.Since(start), runErr)
		return runErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
