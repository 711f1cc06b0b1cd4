package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"collegepay/internal/app"
	"collegepay/internal/config"
)

// Worker consumes payment messages: uploads inline proofs and sends status
// notifications.
func main() {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.QueueBackend == "memory" {
		slog.Error("the standalone worker needs QUEUE_BACKEND=redis or kafka; the API runs the memory worker itself")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Processor().Run(ctx, a.Queue); err != nil {
		slog.Error("worker failed", "error", err)
	}
}
