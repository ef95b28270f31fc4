package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastprodman/matrixledger/internal/app"
	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/infra/logging"
	"github.com/fastprodman/matrixledger/pkg/envconf"
	"github.com/fastprodman/matrixledger/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(openApp)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

// opener builds the engine for one command and returns its teardown.
type opener func(ctx context.Context) (*app.App, func() error, error)

func openApp(ctx context.Context) (*app.App, func() error, error) {
	cfg := new(config.Base)

	err := envconf.Load(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	q := shutdownqueue.New()

	closeFn := func() error {
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return q.Shutdown(c)
	}

	a, err := app.Open(ctx, *cfg, q)
	if err != nil {
		return nil, nil, errors.Join(err, closeFn())
	}

	return a, closeFn, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "matrixctl",
		Short:        "Operator tool for the referral matrix engine",
		SilenceUsage: true,
	}

	root.AddCommand(
		newAuditCmd(open),
		newTreeCmd(open),
		newDrainCmd(open),
		newEvaluateCmd(open),
		newHistoryCmd(open),
	)

	return root
}

// withApp runs fn against a freshly opened engine and always tears it down.
func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App) error) (retErr error) {
	ctx := cmd.Context()

	a, closeFn, err := open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		retErr = errors.Join(retErr, closeFn())
	}()

	return fn(ctx, a)
}
