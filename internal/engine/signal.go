package engine

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context canceled on the first SIGINT or SIGTERM.
// onShutdown runs before the cancel. A second signal exits immediately.
func SetupSignalHandler(parent context.Context, logger *slog.Logger, onShutdown func(context.Context)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("Received signal, shutting down", "signal", sig.String())
		case <-ctx.Done():
			return
		}

		if onShutdown != nil {
			onShutdown(ctx)
		}
		cancel()

		sig := <-sigCh
		logger.Error("Received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx, cancel
}
