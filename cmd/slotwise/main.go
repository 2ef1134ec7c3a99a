package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/adapter/cli/outbox"
	"github.com/felixgeelhaar/slotwise/adapter/cli/slots"
	"github.com/felixgeelhaar/slotwise/adapter/cli/tokens"
	"github.com/felixgeelhaar/slotwise/internal/app"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logCfg := observability.ConfigFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	logCfg.Component = "cli"
	logCfg.Version = cli.Version
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	// version and help work without a database.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()
		cli.SetApp(cli.NewApp(container))
	}

	cli.AddCommand(slots.Cmd)
	cli.AddCommand(outbox.Cmd)
	cli.AddCommand(tokens.Cmd)

	cli.Execute(ctx)
}
