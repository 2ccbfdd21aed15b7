package l1

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// L1Client is the subset of an L1 execution-layer RPC client the watcher
// polls against, narrow enough to be satisfied by ethclient.Client or a
// test double.
type L1Client interface {
	LogFilterer
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// UpdateKind discriminates a BlockUpdate, mirroring magi's BlockUpdate enum
// (l1/chain_watcher.rs): a linear extension of the watched chain, a
// finality checkpoint advance, or a reorg of the unfinalized suffix.
type UpdateKind int

const (
	UpdateNewBlock UpdateKind = iota
	UpdateFinality
	UpdateReorg
)

// BlockUpdate is one event the watcher emits as it walks the L1 chain.
type BlockUpdate struct {
	Kind UpdateKind

	// Populated for UpdateNewBlock.
	Origin              derive.L1Origin
	SystemConfig        eth.SystemConfig
	UserDeposits        []derive.UserDeposit
	BatcherTransactions [][]byte

	// Populated for UpdateFinality.
	FinalizedNumber uint64
}

// ChainWatcher walks the L1 chain one block at a time starting from a
// given block, emitting BlockUpdates over a channel: new blocks carrying
// their batcher transactions and deposits, finality advances, and reorg
// notifications. It is the Go counterpart of magi's
// ChainWatcher/InnerWatcher pair, collapsed into a single type since Go's
// channel-fed goroutine already gives the same decoupling the Rust
// version gets from splitting the handle from the background task.
type ChainWatcher struct {
	log    log.Logger
	cfg    *rollup.Config
	client L1Client
	beacon *BeaconClient
	signer types.Signer

	updates chan BlockUpdate

	currentBlock   uint64
	headBlock      uint64
	finalizedBlock uint64
	unfinalized    []eth.BlockInfo
	systemConfig   eth.SystemConfig
	configCursor   uint64
	devnet         bool
}

func NewChainWatcher(l log.Logger, cfg *rollup.Config, client L1Client, beacon *BeaconClient, startBlock uint64, initialConfig eth.SystemConfig) *ChainWatcher {
	return &ChainWatcher{
		log:          l,
		cfg:          cfg,
		client:       client,
		beacon:       beacon,
		signer:       types.LatestSignerForChainID(cfg.L1ChainID),
		updates:      make(chan BlockUpdate, 1000),
		currentBlock: startBlock,
		systemConfig: initialConfig,
		configCursor: startBlock,
	}
}

// Updates returns the channel new BlockUpdates are sent on.
func (w *ChainWatcher) Updates() <-chan BlockUpdate {
	return w.updates
}

// Run polls the L1 chain until ctx is canceled, sending a BlockUpdate for
// each block as it becomes available (magi start_watcher's loop).
func (w *ChainWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(w.updates)
			return
		default:
		}
		if err := w.tryIngestBlock(ctx); err != nil {
			w.log.Warn("failed to fetch L1 data", "block", w.currentBlock, "err", err)
			select {
			case <-ctx.Done():
				close(w.updates)
				return
			case <-time.After(250 * time.Millisecond):
			}
		}
	}
}

func (w *ChainWatcher) tryIngestBlock(ctx context.Context) error {
	if w.currentBlock > w.finalizedBlock {
		finalized, err := w.getFinalized(ctx)
		if err != nil {
			return fmt.Errorf("fetching finalized block: %w", err)
		}
		if w.finalizedBlock < finalized {
			w.finalizedBlock = finalized
			w.updates <- BlockUpdate{Kind: UpdateFinality, FinalizedNumber: finalized}

			kept := w.unfinalized[:0]
			for _, b := range w.unfinalized {
				if b.Number > w.finalizedBlock {
					kept = append(kept, b)
				}
			}
			w.unfinalized = kept
		}
	}

	if w.currentBlock > w.headBlock {
		head, err := w.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("fetching head header: %w", err)
		}
		w.headBlock = head.Number.Uint64()
	}

	if w.currentBlock > w.headBlock {
		return nil
	}

	if err := w.updateSystemConfig(ctx); err != nil {
		return fmt.Errorf("updating system config: %w", err)
	}

	block, err := w.client.BlockByNumber(ctx, new(big.Int).SetUint64(w.currentBlock))
	if err != nil {
		return fmt.Errorf("fetching block %d: %w", w.currentBlock, err)
	}
	deposits, err := FetchDeposits(ctx, w.client, w.cfg.DepositContractAddress, w.currentBlock, w.currentBlock)
	if err != nil {
		return fmt.Errorf("fetching deposits for block %d: %w", w.currentBlock, err)
	}
	senders, err := w.senders(block)
	if err != nil {
		return fmt.Errorf("recovering senders for block %d: %w", w.currentBlock, err)
	}
	batcherTxs, err := ExtractBatcherTransactions(ctx, w.beacon, block, senders, w.systemConfig.BatcherAddr, w.cfg.BatchInboxAddress)
	if err != nil {
		return fmt.Errorf("extracting batcher transactions for block %d: %w", w.currentBlock, err)
	}

	info := eth.BlockInfo{
		Hash:       block.Hash(),
		Number:     block.NumberU64(),
		ParentHash: block.ParentHash(),
		Time:       block.Time(),
	}
	if info.Number >= w.finalizedBlock {
		w.unfinalized = append(w.unfinalized, info)
	}

	var baseFee, blobBaseFee *big.Int
	if block.BaseFee() != nil {
		baseFee = new(big.Int).Set(block.BaseFee())
	}
	if eb := block.ExcessBlobGas(); eb != nil {
		blobBaseFee = eip4844BlobBaseFee(*eb)
	}

	update := BlockUpdate{
		Kind: UpdateNewBlock,
		Origin: derive.L1Origin{
			Info:        info,
			PrevRandao:  eth.Bytes32(block.MixDigest()),
			BaseFee:     baseFee,
			BlobBaseFee: blobBaseFee,
		},
		SystemConfig:        w.systemConfig,
		BatcherTransactions: batcherTxs,
	}
	for _, d := range deposits[w.currentBlock] {
		update.UserDeposits = append(update.UserDeposits, d)
	}
	if w.checkReorg() {
		update.Kind = UpdateReorg
	}

	w.updates <- update
	w.currentBlock++
	return nil
}

func (w *ChainWatcher) checkReorg() bool {
	n := len(w.unfinalized)
	if n < 2 {
		return false
	}
	last, parent := w.unfinalized[n-1], w.unfinalized[n-2]
	return last.ParentHash != parent.Hash
}

func (w *ChainWatcher) getFinalized(ctx context.Context) (uint64, error) {
	tag := big.NewInt(int64(-3)) // FinalizedBlockNumber per go-ethereum/rpc conventions
	if w.devnet {
		tag = nil // latest
	}
	hdr, err := w.client.HeaderByNumber(ctx, tag)
	if err != nil {
		return 0, err
	}
	return hdr.Number.Uint64(), nil
}

// updateSystemConfig advances the watcher's cached SystemConfig by
// scanning ConfigUpdate logs in batches of 1000 L1 blocks, applying the
// single next pending update exactly when currentBlock reaches the block
// it was emitted in (magi InnerWatcher::update_system_config).
func (w *ChainWatcher) updateSystemConfig(ctx context.Context) error {
	if w.configCursor >= w.currentBlock {
		return nil
	}
	toBlock := w.configCursor + 1000
	if w.headBlock != 0 && toBlock > w.headBlock {
		toBlock = w.headBlock
	}
	logs, err := w.client.FilterLogs(ctx, filterQuery(w.cfg.L1SystemConfigAddress, ConfigUpdateTopic, w.configCursor+1, toBlock))
	if err != nil {
		return err
	}
	if len(logs) > 0 {
		update, err := DecodeConfigUpdateLog(logs[0])
		if err != nil {
			return err
		}
		if update.L1BlockNum > w.currentBlock {
			// Not active yet: stop just short of its block so the log is
			// read again once currentBlock reaches it.
			w.configCursor = update.L1BlockNum - 1
			return nil
		}
		w.configCursor = update.L1BlockNum
		w.systemConfig = update.Apply(w.systemConfig)
		w.log.Info("system config updated", "block", w.currentBlock)
		return nil
	}
	w.configCursor = toBlock
	return nil
}

func (w *ChainWatcher) senders(block *types.Block) ([]common.Address, error) {
	senders := make([]common.Address, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		from, err := types.Sender(w.signer, tx)
		if err != nil {
			return nil, fmt.Errorf("recovering sender of tx %d: %w", i, err)
		}
		senders[i] = from
	}
	return senders, nil
}
