package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/api"
	"github.com/fastprodman/matrixledger/internal/app"
	"github.com/fastprodman/matrixledger/internal/infra/logging"
	"github.com/fastprodman/matrixledger/internal/jobs"
	"github.com/fastprodman/matrixledger/pkg/envconf"
	"github.com/fastprodman/matrixledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matrixledger api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	var cfg apiConfig

	err := envconf.Load(&cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	q := shutdownqueue.New()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		retErr = errors.Join(retErr, q.Shutdown(sctx))
	}()

	a, err := app.Open(ctx, cfg.Base, q)
	if err != nil {
		return err
	}

	if cfg.JobsEnabled {
		err = startJobs(ctx, cfg, a, q)
		if err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Port, a.Matrix, a.Auditor, cfg.RequestTimeout)
	q.Add("http", srv.Shutdown)

	return serve(ctx, srv)
}

func startJobs(ctx context.Context, cfg apiConfig, a *app.App, q *shutdownqueue.Queue) error {
	sched, err := jobs.NewScheduler(cfg.Audit, a.Auditor, a.Progression)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	err = sched.Start(ctx, cfg.Audit.Schedule, cfg.Audit.DrainSchedule)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	q.Add("jobs", sched.Stop)
	return nil
}

// serve blocks until ctx is done or the listener fails. Shutdown itself is
// left to the queue.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	log.WithField("addr", srv.Addr).Info("api listening")

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}
}
