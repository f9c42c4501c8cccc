package sig

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonnyShabli/registry-mailer/pkg/logster"
)

var ErrSignalReceived = errors.New("os signal received")

// ListenSignal blocks until SIGINT/SIGTERM or ctx is done. On a signal it
// cancels the application context and returns ErrSignalReceived.
func ListenSignal(ctx context.Context, logger logster.Logger, cancel context.CancelFunc) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case s := <-sigCh:
		logger.Infof("received signal %s, shutting down", s)
		cancel()
		return ErrSignalReceived
	case <-ctx.Done():
		return nil
	}
}
