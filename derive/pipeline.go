package derive

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// L1Origin is the subset of L1 block data the pipeline needs to derive
// PayloadAttributes against: identity, parent hash, and the base
// fee/blob base fee that flow into the L1-attributes deposit calldata.
type L1Origin struct {
	Info          eth.BlockInfo
	PrevRandao    eth.Bytes32
	BaseFee       *big.Int
	BlobBaseFee   *big.Int
}

// Pipeline chains the four derivation stages end to end: batcher
// transactions feed a channel bank, channels feed a batch queue, and
// batches feed an attributes queue. Callers advance it one L1 origin at a
// time, ingesting that origin's batcher transactions and deposits before
// draining every PayloadAttributes it makes available
// (magi node_driver.rs advance_safe_head's per-origin pipeline loop).
type Pipeline struct {
	log log.Logger
	cfg *rollup.Config

	batcherTxs *BatcherTransactions
	channels   *ChannelBank
	batches    *BatchQueue
	attributes *AttributesQueue

	deposits  map[uint64][]UserDeposit
	l1Origins L1OriginProvider

	currentOrigin L1Origin
}

// NewPipeline builds a Pipeline that derives starting at startEpoch.
// l1Origins resolves the identity of an already-observed L1 epoch for
// stage 3's validity predicate (spec.md §4.5); driver.State satisfies it.
func NewPipeline(l log.Logger, cfg *rollup.Config, startEpoch uint64, l1Origins L1OriginProvider) *Pipeline {
	deposits := make(map[uint64][]UserDeposit)
	batcherTxs := NewBatcherTransactions()
	channels := NewChannelBank(l, cfg.ChannelTimeout)
	batches := NewBatchQueue(cfg, channels, startEpoch, l1Origins)
	attributes := NewAttributesQueue(cfg, batches, deposits)

	return &Pipeline{
		log:        l,
		cfg:        cfg,
		batcherTxs: batcherTxs,
		channels:   channels,
		batches:    batches,
		attributes: attributes,
		deposits:   deposits,
		l1Origins:  l1Origins,
	}
}

// UpdateSafeHead tells stage 3 the safe head/epoch its validity predicate
// should run against, called by the driver whenever the engine accepts a
// new safe block.
func (p *Pipeline) UpdateSafeHead(head eth.BlockInfo, epoch eth.Epoch) {
	p.batches.UpdateSafeHead(head, epoch)
}

// IngestOrigin records origin as the L1 block batcher transactions and
// deposits supplied via IngestBatcherTx/IngestDeposit are interpreted
// against, and advances the channel bank's pruning clock.
func (p *Pipeline) IngestOrigin(origin L1Origin) {
	p.currentOrigin = origin
}

// IngestBatcherTx feeds one batcher transaction's payload (calldata or
// decoded blob, with the leading derivation-version byte already checked
// and stripped by the caller) into stage 1.
func (p *Pipeline) IngestBatcherTx(payload []byte) error {
	if err := p.batcherTxs.Push(payload); err != nil {
		return NewTemporaryError(err)
	}
	for {
		f, err := p.batcherTxs.NextFrame()
		if err == EOF {
			return nil
		}
		if err != nil {
			return NewTemporaryError(err)
		}
		p.channels.IngestFrame(f, p.currentOrigin.Info.Number)
	}
}

// IngestDeposit records a user deposit observed in the current L1 origin's
// epoch, to be spliced into that epoch's first L2 block.
func (p *Pipeline) IngestDeposit(epoch uint64, dep UserDeposit) {
	p.deposits[epoch] = append(p.deposits[epoch], dep)
}

// Step produces the next available PayloadAttributes, or EOF if the
// pipeline has nothing left to derive from the current L1 origin — the
// caller should then feed the next origin and retry. sysCfg is the System
// Config in effect at the current L1 origin, tracked by the L1 watcher
// from ConfigUpdate log events.
func (p *Pipeline) Step(sysCfg eth.SystemConfig) (*eth.PayloadAttributes, error) {
	attrs, err := p.attributes.NextAttributes(
		p.currentOrigin.Info,
		p.currentOrigin.PrevRandao,
		sysCfg,
		p.currentOrigin.BaseFee,
		p.currentOrigin.BlobBaseFee,
	)
	if err == EOF {
		return nil, EOF
	}
	if err != nil {
		return nil, NewTemporaryError(err)
	}
	return attrs, nil
}

// Reset discards all buffered pipeline state and restarts derivation from
// startEpoch against safeHead/safeEpoch, used when an L1 reorg or derived
// attributes the engine rejects force the driver to rebuild the pipeline.
func (p *Pipeline) Reset(startEpoch uint64, safeHead eth.BlockInfo, safeEpoch eth.Epoch) {
	p.log.Info("resetting derivation pipeline", "startEpoch", startEpoch)
	p.batcherTxs = NewBatcherTransactions()
	p.channels = NewChannelBank(p.log, p.cfg.ChannelTimeout)
	p.batches = NewBatchQueue(p.cfg, p.channels, startEpoch, p.l1Origins)
	p.batches.UpdateSafeHead(safeHead, safeEpoch)
	p.deposits = make(map[uint64][]UserDeposit)
	p.attributes = NewAttributesQueue(p.cfg, p.batches, p.deposits)
}
