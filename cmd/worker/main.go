package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/isa-knowledge-base/internal/bootstrap"
	"github.com/kirillkom/isa-knowledge-base/internal/config"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/queue/nats"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
	"github.com/kirillkom/isa-knowledge-base/internal/observability/logging"
	"github.com/kirillkom/isa-knowledge-base/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, workerMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(cfg.Resilience),
		Observer:           workerMetrics,
	})
	if err != nil {
		slog.Error("nats_connect_failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()

	if err := bus.Serve(ctx, app.Tools.Call); err != nil {
		slog.Error("tool_bus_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
