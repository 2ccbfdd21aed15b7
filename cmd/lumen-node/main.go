package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/lumen-stack/lumen-node/config"
	"github.com/lumen-stack/lumen-node/node"
)

func main() {
	app := cli.NewApp()
	app.Name = "lumen-node"
	app.Usage = "runs the derivation pipeline that turns L1 batches into an L2 chain"
	app.Description = "lumen-node reads batcher transactions and deposits from L1, derives L2 block attributes, and drives an L2 execution engine to build and finalize the resulting chain."
	app.Flags = config.Flags
	app.Action = runNode

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(cliCtx *cli.Context) error {
	l := setupLogging(cliCtx.String(config.LogLevelFlag.Name))

	fileCfg, err := config.LoadTOML(cliCtx.String(config.ConfigFileFlag.Name))
	if err != nil {
		return err
	}
	cfg := fileCfg.ApplyFlags(cliCtx)
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, l, cfg)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}
	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	l.Info("lumen-node started", "chain_id", n.RollupConfig().L2ChainID)
	<-ctx.Done()
	l.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return n.Stop(stopCtx)
}

// setupLogging builds a terminal logger at the requested level and
// installs it as the package default, the same CLI-flag-to-logger wiring
// cp-program/host/cmd/main.go delegates to its internal oplog helper,
// done directly here against go-ethereum/log since that helper isn't
// part of this module's dependency surface.
func setupLogging(level string) log.Logger {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		lvl = log.LevelInfo
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger
}
