// Command edushop-worker consumes the Redis task queue and runs the
// periodic schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EduShopX/edushop/internal/app/runtime"
	"github.com/EduShopX/edushop/internal/config"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	application, err := runtime.NewApplication(cfg, runtime.ModeWorker)
	if err != nil {
		logrus.WithError(err).Fatal("build worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("worker shutdown")
	}
	if runErr != nil {
		logrus.WithError(runErr).Error("worker stopped")
		os.Exit(1)
	}
}
