package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Context returns a child of parent that is cancelled on SIGTERM or
// SIGINT. A second signal terminates the program with exit code 1, so
// that a stuck shutdown can still be interrupted.
func Context(parent context.Context, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			logger.Infof("received %s, finishing running checks", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		<-c
		os.Exit(1) // second signal. Exit directly.
	}()
	return ctx, cancel
}
