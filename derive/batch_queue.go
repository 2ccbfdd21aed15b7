package derive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// BatchType is the leading byte of each decoded batch item, distinguishing
// the original Bedrock per-block RLP encoding from the Delta-era span-batch
// compact binary encoding that packs many blocks into one item.
type BatchType byte

const (
	BatchTypeSingle BatchType = 0
	BatchTypeSpan   BatchType = 1
)

// Batch is one decoded channel item: a Single batch covers exactly one L2
// block, a Span batch the N consecutive blocks its header declares.
type Batch struct {
	Type   BatchType
	Blocks []*SingleBatch // len 1 for BatchTypeSingle, len N for BatchTypeSpan
}

// L1OriginProvider resolves the epoch (L1 origin identity) for an L1 block
// number the watcher has already observed. driver.State satisfies this
// directly; BatchQueue only needs the narrow slice of it the validity
// predicate reads, so the interface lives here rather than importing driver.
type L1OriginProvider interface {
	EpochByNumber(number uint64) (eth.Epoch, bool)
}

type batchVerdict int

const (
	batchDrop batchVerdict = iota
	batchFuture
	batchUndecided
	batchAccept
)

// BatchQueue is stage 3: it decodes channel payloads into batches and
// applies magi batch_queue.rs's validity predicate against the current
// safe head, yielding one valid block at a time and synthesizing an empty
// batch once the L1 chain has moved too far ahead for a real one to still
// arrive in time (spec.md §4.5).
type BatchQueue struct {
	cfg        *rollup.Config
	prev       *ChannelBank
	startEpoch uint64
	l1Origins  L1OriginProvider

	safeHead  eth.BlockInfo
	safeEpoch eth.Epoch

	pending []*SingleBatch // decoded, not yet classified
	future  []*SingleBatch // classified Future, waiting for their slot
}

func NewBatchQueue(cfg *rollup.Config, prev *ChannelBank, startEpoch uint64, l1Origins L1OriginProvider) *BatchQueue {
	return &BatchQueue{cfg: cfg, prev: prev, startEpoch: startEpoch, l1Origins: l1Origins}
}

// UpdateSafeHead tells the batch queue the head/epoch the validity
// predicate should run against, called whenever the engine driver accepts
// a new safe block.
func (q *BatchQueue) UpdateSafeHead(head eth.BlockInfo, epoch eth.Epoch) {
	q.safeHead = head
	q.safeEpoch = epoch
}

// NextBatch returns the next block to derive PayloadAttributes from.
// Batches are classified against the current safe head as they're pulled
// from the channel bank: Drop is discarded silently, Future is held until
// its scheduled slot arrives, and Undecided returns a TemporaryError so
// the caller retries once the L1 watcher has ingested the epoch this batch
// needs. currentL1Block is the highest L1 block number ingested so far,
// used to decide whether to synthesize an empty batch once nothing usable
// is left to pull (spec.md §4.5's empty-batch insertion).
func (q *BatchQueue) NextBatch(currentL1Block uint64) (*SingleBatch, error) {
	for {
		block, err := q.nextCandidate()
		if err != nil {
			if err == EOF {
				if empty := q.synthesizeEmptyBatch(currentL1Block); empty != nil {
					return empty, nil
				}
				return nil, EOF
			}
			return nil, err
		}

		switch q.classify(block) {
		case batchDrop:
			continue
		case batchFuture:
			q.future = append(q.future, block)
			continue
		case batchUndecided:
			q.pending = append([]*SingleBatch{block}, q.pending...)
			return nil, NewTemporaryError(fmt.Errorf("epoch %d not yet known to the l1 watcher", block.EpochNum))
		default: // batchAccept
			return block, nil
		}
	}
}

// nextCandidate returns the next decoded block to classify: a previously
// Future block whose scheduled timestamp has come due takes priority, then
// anything already pending, then freshly decoded batches pulled from the
// channel bank.
func (q *BatchQueue) nextCandidate() (*SingleBatch, error) {
	nextTimestamp := q.safeHead.Time + q.cfg.BlockTime
	for i, b := range q.future {
		if b.Timestamp <= nextTimestamp {
			q.future = append(q.future[:i:i], q.future[i+1:]...)
			return b, nil
		}
	}
	if len(q.pending) > 0 {
		b := q.pending[0]
		q.pending = q.pending[1:]
		return b, nil
	}

	channel, err := q.prev.NextChannel()
	if err != nil {
		return nil, err
	}
	batches, err := decodeBatches(channel, q.cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding channel into batches: %w", err)
	}
	for _, b := range batches {
		for _, block := range b.Blocks {
			if block.EpochNum < q.startEpoch {
				continue
			}
			q.pending = append(q.pending, block)
		}
	}
	if len(q.pending) == 0 {
		return nil, EOF
	}
	b := q.pending[0]
	q.pending = q.pending[1:]
	return b, nil
}

// classify applies the §4.5 validity predicate to block against the
// current safe head and safe epoch. Parent-hash and epoch-hash checks only
// apply to Single batches: a span batch's blocks carry truncated 20-byte
// parent/origin checks in its header rather than full hashes, so those
// only constrain the span's first block and epoch-change points, not every
// block in it, and are not reconstructible here as a full-hash comparison.
func (q *BatchQueue) classify(block *SingleBatch) batchVerdict {
	nextTimestamp := q.safeHead.Time + q.cfg.BlockTime
	if block.Timestamp < nextTimestamp {
		return batchDrop
	}
	if block.Timestamp > nextTimestamp {
		return batchFuture
	}

	checkHashes := !block.FromSpan
	if checkHashes && block.ParentHash != q.safeHead.Hash {
		return batchDrop
	}

	epoch, ok := q.l1Origins.EpochByNumber(block.EpochNum)
	if !ok {
		return batchUndecided
	}
	if checkHashes && epoch.Hash != block.EpochHash {
		return batchDrop
	}
	if block.EpochNum < q.safeEpoch.Number {
		return batchDrop
	}
	if block.EpochNum > q.safeEpoch.Number+1 {
		return batchDrop
	}
	if block.EpochNum == q.safeEpoch.Number+1 {
		if _, ok := q.l1Origins.EpochByNumber(q.safeEpoch.Number + 1); !ok {
			return batchUndecided
		}
	}
	if block.Timestamp > epoch.Time+q.cfg.MaxSequencerDrift {
		return batchDrop
	}
	if block.hasInvalidOrEmptyTransactions() {
		return batchDrop
	}
	return batchAccept
}

// synthesizeEmptyBatch fabricates a batch for the current slot once the L1
// chain has moved far enough past the safe epoch that waiting for a real
// batch would stall the chain. Its epoch stays safeEpoch unless the next
// scheduled timestamp has already reached the next epoch's L1 timestamp,
// in which case it advances (spec.md §4.5's empty-batch insertion).
func (q *BatchQueue) synthesizeEmptyBatch(currentL1Block uint64) *SingleBatch {
	if currentL1Block <= q.safeEpoch.Number+q.cfg.SeqWindowSize {
		return nil
	}
	nextTimestamp := q.safeHead.Time + q.cfg.BlockTime
	epoch := q.safeEpoch
	if nextEpoch, ok := q.l1Origins.EpochByNumber(q.safeEpoch.Number + 1); ok && nextTimestamp >= nextEpoch.Time {
		epoch = nextEpoch
	}
	return &SingleBatch{
		ParentHash: q.safeHead.Hash,
		EpochNum:   epoch.Number,
		EpochHash:  epoch.Hash,
		Timestamp:  nextTimestamp,
	}
}

// decodeBatches walks a decompressed channel payload as a sequence of
// back-to-back RLP byte-strings, each one batch item (magi's
// Rlp::payload_info offset-advance loop, adapted to go-ethereum's rlp.Stream).
func decodeBatches(channelPayload []byte, cfg *rollup.Config) ([]*Batch, error) {
	var batches []*Batch
	stream := rlp.NewStream(bytes.NewReader(channelPayload), uint64(len(channelPayload)))
	for {
		var item []byte
		if err := stream.Decode(&item); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decoding batch item: %w", err)
		}
		b, err := decodeBatchItem(item, cfg)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func decodeBatchItem(item []byte, cfg *rollup.Config) (*Batch, error) {
	if len(item) == 0 {
		return nil, fmt.Errorf("empty batch item")
	}
	switch BatchType(item[0]) {
	case BatchTypeSingle:
		sb, err := DecodeSingleBatch(item[1:])
		if err != nil {
			return nil, err
		}
		return &Batch{Type: BatchTypeSingle, Blocks: []*SingleBatch{sb}}, nil
	case BatchTypeSpan:
		blocks, err := DecodeSpanBatchWithConfig(item[1:], cfg.Genesis.L2Time, cfg.BlockTime, cfg.L2ChainID.Uint64())
		if err != nil {
			return nil, err
		}
		for _, b := range blocks {
			b.FromSpan = true
		}
		return &Batch{Type: BatchTypeSpan, Blocks: blocks}, nil
	default:
		return nil, fmt.Errorf("unknown batch type byte 0x%x", item[0])
	}
}
