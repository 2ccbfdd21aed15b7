package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// ExistingL2Block is the subset of an already-produced L2 block the
// skip-fast-path needs to decide whether it is exactly what a set of
// PayloadAttributes would have built. TxHashes are the canonical
// per-transaction hashes the L2 client computes itself — comparing
// against those, rather than against raw transaction bytes, avoids
// needing to re-encode attrs.Transactions to compare it against an
// opaque block representation.
type ExistingL2Block struct {
	Info         eth.BlockInfo
	PrevRandao   eth.Bytes32
	FeeRecipient common.Address
	GasLimit     uint64
	TxHashes     []common.Hash
}

// L2BlockByNumber is the narrow L2 execution RPC surface Driver needs to
// detect a payload's safe-head block already existing unsafely (the
// skip-fast-path below), without pulling in a whole ethclient dependency
// at this layer.
type L2BlockByNumber interface {
	BlockByNumber(ctx context.Context, number uint64) (*ExistingL2Block, error)
}

// Driver drives one L2 execution engine: it turns PayloadAttributes into
// built, validated, canonical blocks, and tracks the three chain heads the
// rest of the node reasons about (magi driver/engine_driver.rs
// EngineDriver, generalized with op-node's insertion-error classification
// so the caller can tell a bad-attributes error from a transient RPC
// failure).
type Driver struct {
	log    log.Logger
	cfg    *rollup.Config
	client *Client
	l2     L2BlockByNumber

	UnsafeHead     eth.BlockInfo
	SafeHead       eth.BlockInfo
	SafeEpoch      eth.Epoch
	FinalizedHead  eth.BlockInfo
	FinalizedEpoch eth.Epoch
}

func NewDriver(l log.Logger, cfg *rollup.Config, client *Client, l2 L2BlockByNumber, finalizedHead eth.BlockInfo, finalizedEpoch eth.Epoch) *Driver {
	return &Driver{
		log:            l,
		cfg:            cfg,
		client:         client,
		l2:             l2,
		UnsafeHead:     finalizedHead,
		SafeHead:       finalizedHead,
		SafeEpoch:      finalizedEpoch,
		FinalizedHead:  finalizedHead,
		FinalizedEpoch: finalizedEpoch,
	}
}

// InsertErrKind classifies a failed attempt to turn PayloadAttributes into
// a block, so the driver knows whether to retry as-is, trigger a pipeline
// reset, or drop the payload outright (op-node rollup/derive/engine_update.go
// BlockInsertionErrType).
type InsertErrKind int

const (
	InsertOK InsertErrKind = iota
	InsertTemporary
	InsertPrestateErr
	InsertPayloadErr
)

type InsertError struct {
	Kind InsertErrKind
	Err  error
}

func (e *InsertError) Error() string { return e.Err.Error() }
func (e *InsertError) Unwrap() error { return e.Err }

// HandleAttributes turns safe-derived attributes into a block. If an L2
// block already exists at safe_head+1 and matches attrs exactly, it is
// adopted as the new safe head without rebuilding it (the skip fast path:
// the sequencer already built and gossiped this exact block unsafely, so
// re-deriving it through the engine would be redundant).
func (d *Driver) HandleAttributes(ctx context.Context, attrs *eth.PayloadAttributes) error {
	existing, err := d.l2.BlockByNumber(ctx, d.SafeHead.Number+1)
	if err == nil && existing != nil && attributesMatch(attrs, existing) {
		d.updateSafeHead(existing.Info, attrs.Epoch)
		return nil
	}
	return d.processAttributes(ctx, attrs, true)
}

// HandleUnsafeAttributes processes sequencer-gossiped attributes that have
// not yet been confirmed safe by L1 derivation.
func (d *Driver) HandleUnsafeAttributes(ctx context.Context, attrs *eth.PayloadAttributes) error {
	return d.processAttributes(ctx, attrs, false)
}

func (d *Driver) processAttributes(ctx context.Context, attrs *eth.PayloadAttributes, safe bool) error {
	payload, err := d.buildPayload(ctx, attrs)
	if err != nil {
		return err
	}
	if err := d.pushPayload(ctx, payload); err != nil {
		return err
	}
	newHead := payload.ExecutionPayload.Info()
	if safe {
		d.updateSafeHead(newHead, attrs.Epoch)
	} else {
		d.updateUnsafeHead(newHead)
	}
	return d.updateForkchoice(ctx)
}

func (d *Driver) buildPayload(ctx context.Context, attrs *eth.PayloadAttributes) (*eth.ExecutionPayloadEnvelope, error) {
	ecotone := d.cfg.IsEcotone(uint64(attrs.Timestamp))
	update, err := d.client.ForkchoiceUpdated(ctx, d.forkchoiceState(), attrs, ecotone)
	if err != nil {
		return nil, &InsertError{Kind: InsertTemporary, Err: fmt.Errorf("forkchoice update to start payload build: %w", err)}
	}
	if update.PayloadStatus.Status == eth.ExecutionInvalid || update.PayloadStatus.Status == eth.ExecutionInvalidBlockHash {
		return nil, &InsertError{Kind: InsertPayloadErr, Err: fmt.Errorf("invalid payload attributes: %v", update.PayloadStatus.ValidationError)}
	}
	if update.PayloadStatus.Status != eth.ExecutionValid {
		return nil, &InsertError{Kind: InsertPrestateErr, Err: fmt.Errorf("forkchoice update did not return VALID: %s", update.PayloadStatus.Status)}
	}
	if update.PayloadID == nil {
		return nil, &InsertError{Kind: InsertTemporary, Err: fmt.Errorf("engine accepted attributes but returned no payload id")}
	}
	payload, err := d.client.GetPayload(ctx, *update.PayloadID, ecotone)
	if err != nil {
		return nil, &InsertError{Kind: InsertTemporary, Err: fmt.Errorf("fetching built payload: %w", err)}
	}
	return payload, nil
}

func (d *Driver) pushPayload(ctx context.Context, payload *eth.ExecutionPayloadEnvelope) error {
	ecotone := d.cfg.IsEcotone(uint64(payload.ExecutionPayload.Timestamp))
	status, err := d.client.NewPayload(ctx, payload, ecotone)
	if err != nil {
		return &InsertError{Kind: InsertTemporary, Err: fmt.Errorf("submitting new payload: %w", err)}
	}
	if status.Status != eth.ExecutionValid && status.Status != eth.ExecutionAccepted {
		return &InsertError{Kind: InsertPayloadErr, Err: fmt.Errorf("invalid execution payload: %s", status.Status)}
	}
	return nil
}

// updateForkchoice re-announces the current head triple to the engine
// without building a payload, syncing it to what HandleAttributes/
// HandleUnsafeAttributes just decided.
func (d *Driver) updateForkchoice(ctx context.Context) error {
	update, err := d.client.ForkchoiceUpdated(ctx, d.forkchoiceState(), nil, false)
	if err != nil {
		return fmt.Errorf("updating forkchoice: %w", err)
	}
	if update.PayloadStatus.Status != eth.ExecutionValid {
		return fmt.Errorf("engine rejected new forkchoice: %s", update.PayloadStatus.Status)
	}
	return nil
}

// UpdateFinalized records a new finalized head, advancing the forkchoice
// state's finalizedBlockHash on the next update.
func (d *Driver) UpdateFinalized(head eth.BlockInfo, epoch eth.Epoch) {
	d.FinalizedHead = head
	d.FinalizedEpoch = epoch
}

// Reorg discards everything past the finalized head, the deepest reset the
// driver ever needs: finalized blocks are guaranteed never to be reverted.
func (d *Driver) Reorg() {
	d.UnsafeHead = d.FinalizedHead
	d.SafeHead = d.FinalizedHead
	d.SafeEpoch = d.FinalizedEpoch
}

// ReorgUnsafeHead drops unsafe blocks past the current safe head, used
// when gossip produced a chain that conflicts with what L1 derivation
// confirmed.
func (d *Driver) ReorgUnsafeHead() {
	d.UnsafeHead = d.SafeHead
}

func (d *Driver) updateSafeHead(head eth.BlockInfo, epoch eth.Epoch) {
	if d.SafeHead != head {
		d.SafeHead = head
		d.SafeEpoch = epoch
	}
	if head.Number >= d.UnsafeHead.Number {
		d.UnsafeHead = head
	}
}

func (d *Driver) updateUnsafeHead(head eth.BlockInfo) {
	d.UnsafeHead = head
}

func (d *Driver) forkchoiceState() eth.ForkchoiceState {
	return eth.ForkchoiceState{
		HeadBlockHash:      d.UnsafeHead.Hash,
		SafeBlockHash:      d.SafeHead.Hash,
		FinalizedBlockHash: d.FinalizedHead.Hash,
	}
}

// attributesMatch reports whether an already-produced L2 block is exactly
// what attrs would have built, letting the driver skip rebuilding it
// (magi engine_driver.rs should_skip).
func attributesMatch(attrs *eth.PayloadAttributes, block *ExistingL2Block) bool {
	if uint64(attrs.Timestamp) != block.Info.Time {
		return false
	}
	if attrs.PrevRandao != block.PrevRandao {
		return false
	}
	if attrs.SuggestedFeeRecipient != block.FeeRecipient {
		return false
	}
	if attrs.GasLimit != nil && uint64(*attrs.GasLimit) != block.GasLimit {
		return false
	}
	if len(attrs.Transactions) != len(block.TxHashes) {
		return false
	}
	for i, tx := range attrs.Transactions {
		if crypto.Keccak256Hash(tx) != block.TxHashes[i] {
			return false
		}
	}
	return true
}
