package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/isa-knowledge-base/internal/adapters/mcp"
	"github.com/kirillkom/isa-knowledge-base/internal/bootstrap"
	"github.com/kirillkom/isa-knowledge-base/internal/config"
	"github.com/kirillkom/isa-knowledge-base/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	server, err := mcpadapter.NewServer(app.Tools, version)
	if err != nil {
		slog.Error("mcp_init_failed", "error", err)
		os.Exit(1)
	}
	if err := mcpadapter.ServeStdio(ctx, server, os.Stdin, os.Stdout); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
	}
}
