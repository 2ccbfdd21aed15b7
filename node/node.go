// Package node wires together the L1 watcher, derivation pipeline, engine
// driver and top-level driver loop into a single running node, the way
// cp-node/node/node.go's OpNode assembles its own, much larger, set of
// subsystems behind one Start/Stop pair.
package node

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	"github.com/lumen-stack/lumen-node/config"
	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/driver"
	"github.com/lumen-stack/lumen-node/engine"
	"github.com/lumen-stack/lumen-node/l1"
	"github.com/lumen-stack/lumen-node/l2"
	"github.com/lumen-stack/lumen-node/metrics"
	"github.com/lumen-stack/lumen-node/rollup"
)

// Node owns every long-lived connection and goroutine the running rollup
// node needs, and aggregates shutdown errors the way cp-node's OpNode.Stop
// does with hashicorp/go-multierror rather than failing fast on the first
// close error and leaking the rest.
type Node struct {
	log log.Logger
	cfg *rollup.Config

	l1Client *ethclient.Client
	l2Client *l2.Client

	watcher *l1.ChainWatcher
	driver  *driver.Driver

	metricsEnabled bool
	metricsHost    string
	metricsPort    int

	cancel context.CancelFunc
	done   chan struct{}
}

// New dials every RPC endpoint, recovers the node's head from the L2
// chain's own state, and assembles the watcher/pipeline/engine/driver
// stack, returning a Node ready for Start.
func New(ctx context.Context, l log.Logger, cfg config.Config) (*Node, error) {
	rollupCfg, err := config.LoadRollupConfig(cfg.RollupConfigPath)
	if err != nil {
		return nil, err
	}

	l1Client, err := ethclient.DialContext(ctx, cfg.L1RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing l1 rpc: %w", err)
	}

	var beacon *l1.BeaconClient
	if cfg.L1BeaconURL != "" {
		beacon = l1.NewBeaconClient(cfg.L1BeaconURL)
	}

	l2Client, err := l2.Dial(ctx, cfg.L2RPCURL)
	if err != nil {
		l1Client.Close()
		return nil, fmt.Errorf("dialing l2 rpc: %w", err)
	}

	jwtSecret, err := engine.LoadJWTSecret(cfg.JWTSecretPath)
	if err != nil {
		l1Client.Close()
		l2Client.Close()
		return nil, fmt.Errorf("loading engine jwt secret: %w", err)
	}
	engineClient := engine.NewClient(cfg.L2EngineURL, jwtSecret)

	head := driver.GetHeadInfo(ctx, l2Client, rollupCfg)
	l.Info("recovered head info", "l2_block", head.L2Block.Number, "l1_epoch", head.L1Epoch.Number, "seq_number", head.SeqNumber)

	engineDriver := engine.NewDriver(l, rollupCfg, engineClient, l2Client, head.L2Block, head.L1Epoch)

	startBlock := driver.GetL1StartBlock(head.L1Epoch.Number, rollupCfg.ChannelTimeout)
	watcher := l1.NewChainWatcher(l, rollupCfg, l1Client, beacon, startBlock, rollupCfg.Genesis.SystemConfig)

	state := driver.NewState(head.L2Block, head.L1Epoch, rollupCfg.SeqWindowSize)

	pipeline := derive.NewPipeline(l, rollupCfg, startBlock, state)
	pipeline.UpdateSafeHead(head.L2Block, head.L1Epoch)

	nodeDriver := driver.NewDriver(l, rollupCfg, watcher, pipeline, engineDriver, state, nil, rollupCfg.Genesis.SystemConfig)

	return &Node{
		log:            l,
		cfg:            rollupCfg,
		l1Client:       l1Client,
		l2Client:       l2Client,
		watcher:        watcher,
		driver:         nodeDriver,
		metricsEnabled: cfg.MetricsEnabled,
		metricsHost:    cfg.MetricsHost,
		metricsPort:    cfg.MetricsPort,
		done:           make(chan struct{}),
	}, nil
}

// Start launches the L1 watcher, the metrics server if enabled, and the
// top-level driver loop, all as background goroutines, returning
// immediately.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	go n.watcher.Run(ctx)

	if n.metricsEnabled {
		go func() {
			if err := metrics.ListenAndServe(ctx, n.metricsHost, n.metricsPort); err != nil && ctx.Err() == nil {
				n.log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	go func() {
		defer close(n.done)
		if err := n.driver.Start(ctx); err != nil && ctx.Err() == nil {
			n.log.Error("driver loop stopped", "err", err)
		}
	}()

	return nil
}

// Stop cancels every background goroutine, waits for the driver loop to
// exit (reporting a timeout through a multierror), and closes the L1/L2
// RPC clients, whose Close methods return no error.
func (n *Node) Stop(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
	}

	var result *multierror.Error
	select {
	case <-n.done:
	case <-ctx.Done():
		result = multierror.Append(result, fmt.Errorf("timed out waiting for driver loop to stop: %w", ctx.Err()))
	}

	n.l1Client.Close()
	n.l2Client.Close()

	return result.ErrorOrNil()
}

// RollupConfig returns the chain configuration the node was started with.
func (n *Node) RollupConfig() *rollup.Config { return n.cfg }
