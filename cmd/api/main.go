package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/isa-knowledge-base/internal/adapters/http"
	"github.com/kirillkom/isa-knowledge-base/internal/bootstrap"
	"github.com/kirillkom/isa-knowledge-base/internal/config"
	"github.com/kirillkom/isa-knowledge-base/internal/observability/logging"
	"github.com/kirillkom/isa-knowledge-base/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, serverMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	router := httpadapter.NewRouter(app.Tools, httpadapter.Options{
		APIKey:       cfg.APIKey,
		RateLimitRPS: cfg.APIRateLimitRPS,
		RateBurst:    cfg.APIRateBurst,
		MaxInFlight:  cfg.APIMaxInFlight,
		Metrics:      serverMetrics.Handler(),
		Instrument:   serverMetrics.Middleware,
		Rejected:     serverMetrics.RecordRejected,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
