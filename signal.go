package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// watchSignals returns a context that cancels on the first SIGINT or
// SIGTERM and force-exits on the second, plus a channel that receives a
// value for every SIGHUP. Both stop when parent is done.
func watchSignals(parent context.Context, logger *slog.Logger) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	reload := make(chan struct{}, 1)

	stopCh := make(chan os.Signal, 2)
	hupCh := make(chan os.Signal, 1)

	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(hupCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(stopCh)
		defer signal.Stop(hupCh)

		stopping := false

		for {
			select {
			case sig := <-stopCh:
				if stopping {
					logger.Warn("received second signal, forcing exit",
						slog.String("signal", sig.String()))
					os.Exit(1)
				}

				logger.Info("received signal, shutting down",
					slog.String("signal", sig.String()))

				stopping = true
				cancel()

			case <-hupCh:
				select {
				case reload <- struct{}{}:
				default:
				}

			case <-parent.Done():
				cancel()
				return
			}
		}
	}()

	return ctx, reload
}
