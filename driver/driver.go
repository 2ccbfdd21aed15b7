package driver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/engine"
	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/l1"
	"github.com/lumen-stack/lumen-node/metrics"
	"github.com/lumen-stack/lumen-node/rollup"
)

// unsafeBlockWindow bounds how far ahead of the current unsafe head a
// gossiped block may be before it is discarded rather than buffered (magi
// node_driver.rs's 1024-block future-block window).
const unsafeBlockWindow = 1024

// unfinalizedBlock is one safe L2 block the driver has derived but the L1
// watcher has not yet reported as finalized, kept around so UpdateFinalized
// can promote it once its L1 inclusion block is itself finalized.
type unfinalizedBlock struct {
	SafeHead         eth.BlockInfo
	SafeEpoch        eth.Epoch
	L1InclusionBlock uint64
	SeqNumber        uint64
}

// Driver is the top-level loop that walks an L2 chain forward: it reads
// BlockUpdates from the L1 watcher, feeds them through the derivation
// pipeline, hands the resulting PayloadAttributes to the engine driver,
// and promotes safe blocks to finalized once their L1 origin is finalized
// (magi src/driver/node_driver.rs NodeDriver).
type Driver struct {
	log log.Logger
	cfg *rollup.Config

	watcher  *l1.ChainWatcher
	pipeline *derive.Pipeline
	engine   *engine.Driver
	state    *State

	// unsafeBlocks carries payload envelopes gossiped in by a sequencer,
	// ahead of L1 derivation confirming them safe. Nil if this node runs
	// without an unsafe-block feed (e.g. in tests, or a verifier with
	// gossip intentionally disabled).
	unsafeBlocks <-chan *eth.ExecutionPayloadEnvelope

	unfinalized      []unfinalizedBlock
	finalizedL1Block uint64
	currentSystemCfg eth.SystemConfig
}

// NewDriver wires the pipeline, engine driver, L1 watcher and shared state
// together starting from the given head info.
func NewDriver(l log.Logger, cfg *rollup.Config, watcher *l1.ChainWatcher, pipeline *derive.Pipeline, engineDriver *engine.Driver, state *State, unsafeBlocks <-chan *eth.ExecutionPayloadEnvelope, initialConfig eth.SystemConfig) *Driver {
	return &Driver{
		log:              l,
		cfg:              cfg,
		watcher:          watcher,
		pipeline:         pipeline,
		engine:           engineDriver,
		state:            state,
		unsafeBlocks:     unsafeBlocks,
		finalizedL1Block: engineDriver.FinalizedEpoch.Number,
		currentSystemCfg: initialConfig,
	}
}

// Start runs the driver loop until ctx is canceled or the L1 watcher's
// update channel closes.
func (d *Driver) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-d.watcher.Updates():
			if !ok {
				return fmt.Errorf("l1 watcher stopped")
			}
			if err := d.handleBlockUpdate(ctx, update); err != nil {
				return fmt.Errorf("handling l1 update: %w", err)
			}
		}

		if err := d.advanceSafeHead(ctx); err != nil {
			return fmt.Errorf("advancing safe head: %w", err)
		}
		d.advanceUnsafeHead(ctx)
		d.updateFinalized()
		d.updateMetrics()
	}
}

func (d *Driver) handleBlockUpdate(ctx context.Context, update l1.BlockUpdate) error {
	switch update.Kind {
	case l1.UpdateFinality:
		d.finalizedL1Block = update.FinalizedNumber
		return nil

	case l1.UpdateReorg:
		metrics.ReorgsTotal.Inc()
		d.log.Warn("l1 reorg detected, resetting derivation", "block", update.Origin.Info.Number)
		d.reset()
		fallthrough

	case l1.UpdateNewBlock:
		d.currentSystemCfg = update.SystemConfig
		d.state.UpdateL1Info(update.Origin)
		d.pipeline.IngestOrigin(update.Origin)
		for _, raw := range update.BatcherTransactions {
			if len(raw) == 0 || raw[0] != derive.DerivationVersion0 {
				continue
			}
			if err := d.pipeline.IngestBatcherTx(raw[1:]); err != nil {
				if _, ok := err.(*derive.TemporaryError); ok {
					d.log.Warn("dropping malformed batcher transaction", "err", err)
					continue
				}
				return err
			}
		}
		for _, dep := range update.UserDeposits {
			d.pipeline.IngestDeposit(update.Origin.Info.Number, dep)
		}
		return nil

	default:
		return fmt.Errorf("unknown block update kind %d", update.Kind)
	}
}

// reset rebuilds the pipeline and shared state from the last finalized
// head, the deepest point an L1 reorg can force the driver back to.
func (d *Driver) reset() {
	metrics.PipelineResetsTotal.Inc()
	d.engine.Reorg()
	d.state.Purge(d.engine.FinalizedHead, d.engine.FinalizedEpoch)
	startBlock := GetL1StartBlock(d.engine.FinalizedEpoch.Number, d.cfg.ChannelTimeout)
	d.pipeline.Reset(startBlock, d.engine.FinalizedHead, d.engine.FinalizedEpoch)
	d.unfinalized = nil
}

// advanceSafeHead drains every PayloadAttributes the pipeline can produce
// from the L1 data ingested so far, pushes each through the engine driver,
// and records the resulting safe block as unfinalized until its L1
// inclusion block is itself finalized.
func (d *Driver) advanceSafeHead(ctx context.Context) error {
	for {
		attrs, err := d.pipeline.Step(d.currentSystemCfg)
		if err == derive.EOF {
			return nil
		}
		if err != nil {
			if _, ok := err.(*derive.TemporaryError); ok {
				d.log.Warn("temporary derivation error, will retry on next origin", "err", err)
				return nil
			}
			return err
		}

		if err := d.engine.HandleAttributes(ctx, attrs); err != nil {
			if insErr, ok := err.(*engine.InsertError); ok && insErr.Kind != engine.InsertTemporary {
				d.log.Error("invalid derived attributes, resetting pipeline", "epoch", attrs.Epoch, "err", err)
				d.reset()
				return nil
			}
			return err
		}

		d.unfinalized = append(d.unfinalized, unfinalizedBlock{
			SafeHead:         d.engine.SafeHead,
			SafeEpoch:        d.engine.SafeEpoch,
			L1InclusionBlock: attrs.L1InclusionBlock,
			SeqNumber:        attrs.SeqNumber,
		})
		d.state.UpdateSafeHead(d.engine.SafeHead, d.engine.SafeEpoch)
		d.pipeline.UpdateSafeHead(d.engine.SafeHead, d.engine.SafeEpoch)
	}
}

// advanceUnsafeHead applies at most one gossiped unsafe block per
// iteration, the one whose parent matches the current unsafe head,
// discarding stale or too-far-ahead entries (magi node_driver.rs
// advance_unsafe_head).
func (d *Driver) advanceUnsafeHead(ctx context.Context) {
	if d.unsafeBlocks == nil {
		return
	}
	for {
		select {
		case payload, ok := <-d.unsafeBlocks:
			if !ok {
				d.unsafeBlocks = nil
				return
			}
			info := payload.ExecutionPayload.Info()
			if info.Number <= d.engine.UnsafeHead.Number || info.Number >= d.engine.UnsafeHead.Number+unsafeBlockWindow {
				continue
			}
			if info.ParentHash != d.engine.UnsafeHead.Hash {
				continue
			}
			attrs := &eth.PayloadAttributes{
				Timestamp:             payload.ExecutionPayload.Timestamp,
				PrevRandao:            payload.ExecutionPayload.PrevRandao,
				SuggestedFeeRecipient: payload.ExecutionPayload.FeeRecipient,
				Transactions:          payload.ExecutionPayload.Transactions,
				GasLimit:              &payload.ExecutionPayload.GasLimit,
			}
			if err := d.engine.HandleUnsafeAttributes(ctx, attrs); err != nil {
				d.log.Warn("failed to apply gossiped unsafe block", "block", info, "err", err)
			}
			return
		default:
			return
		}
	}
}

// updateFinalized promotes the newest unfinalized block whose L1 inclusion
// block has itself been finalized and which starts a new epoch
// (SeqNumber == 0, so finality never lands mid-epoch), dropping it and
// everything older (magi node_driver.rs update_finalized).
func (d *Driver) updateFinalized() {
	promoteIdx := findFinalizationCandidate(d.unfinalized, d.finalizedL1Block)
	if promoteIdx < 0 {
		return
	}
	promote := d.unfinalized[promoteIdx]
	remaining := make([]unfinalizedBlock, len(d.unfinalized)-promoteIdx-1)
	copy(remaining, d.unfinalized[promoteIdx+1:])
	d.unfinalized = remaining
	d.engine.UpdateFinalized(promote.SafeHead, promote.SafeEpoch)
}

// findFinalizationCandidate returns the index of the last entry that opens
// a new epoch (SeqNumber == 0) whose L1 inclusion block has itself been
// finalized, or -1 if none qualifies. Everything at or before that index
// is safe to drop: an epoch-opening entry finalizing implies every entry
// before it, which belongs to an earlier epoch, is finalized too.
func findFinalizationCandidate(unfinalized []unfinalizedBlock, finalizedL1Block uint64) int {
	promoteIdx := -1
	for i, b := range unfinalized {
		if b.SeqNumber == 0 && b.L1InclusionBlock <= finalizedL1Block {
			promoteIdx = i
		}
	}
	return promoteIdx
}

func (d *Driver) updateMetrics() {
	metrics.FinalizedHead.Set(float64(d.engine.FinalizedHead.Number))
	metrics.SafeHead.Set(float64(d.engine.SafeHead.Number))
	metrics.UnsafeHead.Set(float64(d.engine.UnsafeHead.Number))
	metrics.L1CurrentEpoch.Set(float64(d.state.CurrentEpochNum()))
	if d.synced() {
		metrics.Synced.Set(1)
	} else {
		metrics.Synced.Set(0)
	}
}

// synced reports whether derivation has fully caught up: no safe blocks
// are still waiting on finalization confirmation.
func (d *Driver) synced() bool {
	return len(d.unfinalized) == 0
}
