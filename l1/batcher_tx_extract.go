package l1

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// blobCarryingTxType is the EIP-2718 type byte of an EIP-4844 transaction
// (magi l1/chain_watcher.rs BLOB_CARRYING_TRANSACTION_TYPE).
const blobCarryingTxType = types.BlobTxType

// ExtractBatcherTransactions returns the batcher payload — calldata, or
// decoded blob data for EIP-4844 transactions — of every transaction in
// block sent from batcherAddr to batchInbox, in block order. senders gives
// the sender of each transaction in block, in the same order, computed by
// the caller (deriving it requires the chain's signer and is too costly to
// redo here for every transaction).
func ExtractBatcherTransactions(ctx context.Context, beacon *BeaconClient, block *types.Block, senders []common.Address, batcherAddr, batchInbox common.Address) ([][]byte, error) {
	if len(senders) != len(block.Transactions()) {
		return nil, fmt.Errorf("got %d senders for %d transactions", len(senders), len(block.Transactions()))
	}

	var out [][]byte
	var blobIndex int
	type pendingBlob struct {
		txIndex   int
		blobIndex uint64
	}
	var pending []pendingBlob

	for i, tx := range block.Transactions() {
		isBatcherTx := senders[i] == batcherAddr && tx.To() != nil && *tx.To() == batchInbox
		hashes := tx.BlobHashes()

		if !isBatcherTx {
			blobIndex += len(hashes)
			continue
		}

		if tx.Type() != blobCarryingTxType {
			out = append(out, append([]byte(nil), tx.Data()...))
			continue
		}

		for range hashes {
			pending = append(pending, pendingBlob{txIndex: i, blobIndex: uint64(blobIndex)})
			blobIndex++
		}
	}

	if len(pending) == 0 {
		return out, nil
	}
	if beacon == nil {
		return nil, fmt.Errorf("block %d carries blob batcher transactions but no beacon client is configured", block.NumberU64())
	}

	slot, err := beacon.SlotFromTime(ctx, block.Time())
	if err != nil {
		return nil, fmt.Errorf("resolving beacon slot for block %d: %w", block.NumberU64(), err)
	}
	sidecars, err := beacon.BlobSidecars(ctx, slot)
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		var sidecar *BlobSidecar
		for i := range sidecars {
			if sidecars[i].Index == p.blobIndex {
				sidecar = &sidecars[i]
				break
			}
		}
		if sidecar == nil {
			return nil, fmt.Errorf("blob index %d not found in sidecars for slot %d (retention window may have expired)", p.blobIndex, slot)
		}
		decoded, err := DecodeBlobData(sidecar.Blob)
		if err != nil {
			return nil, fmt.Errorf("decoding blob %d: %w", p.blobIndex, err)
		}
		out = append(out, decoded)
	}

	return out, nil
}
