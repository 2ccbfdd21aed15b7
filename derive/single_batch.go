package derive

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lumen-stack/lumen-node/eth"
)

// SingleBatch is the pre-span-batch (Bedrock) RLP encoding of one L2
// block's worth of transactions plus the L1 epoch it derives against
// (magi single_batch.rs).
type SingleBatch struct {
	ParentHash   common.Hash
	EpochNum     uint64
	EpochHash    common.Hash
	Timestamp    uint64
	Transactions [][]byte

	// FromSpan marks a block reconstructed from a span batch rather than
	// decoded directly as a Single batch. Span blocks only carry truncated
	// parent/origin checks in their header, not the full hashes here, so
	// the batch queue skips the exact parent-hash/epoch-hash comparisons
	// for them.
	FromSpan bool
}

// DecodeSingleBatch RLP-decodes one batch item's payload (already stripped
// of its Batch-type prefix byte) into a SingleBatch.
func DecodeSingleBatch(data []byte) (*SingleBatch, error) {
	var b SingleBatch
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return nil, fmt.Errorf("decoding single batch rlp: %w", err)
	}
	return &b, nil
}

// EncodeRLP implements rlp.Encoder with the exact field order and nesting
// magi's batches.rs Batch::encode uses for a single batch.
func (b *SingleBatch) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, []interface{}{
		b.ParentHash,
		b.EpochNum,
		b.EpochHash,
		b.Timestamp,
		b.Transactions,
	})
}

func (b *SingleBatch) DecodeRLP(s *rlp.Stream) error {
	var raw struct {
		ParentHash   common.Hash
		EpochNum     uint64
		EpochHash    common.Hash
		Timestamp    uint64
		Transactions [][]byte
	}
	if err := s.Decode(&raw); err != nil {
		return err
	}
	b.ParentHash = raw.ParentHash
	b.EpochNum = raw.EpochNum
	b.EpochHash = raw.EpochHash
	b.Timestamp = raw.Timestamp
	b.Transactions = raw.Transactions
	return nil
}

// Epoch returns the L1 origin this batch claims to derive from.
func (b *SingleBatch) Epoch() (number uint64, hash common.Hash) {
	return b.EpochNum, b.EpochHash
}

// hasInvalidOrEmptyTransactions reports whether any transaction in the
// batch is a deposit transaction (type 0x7E) or is empty — batchers must
// never include deposits, those are synthesized by the pipeline itself,
// and an empty transaction can't be decoded by the execution engine.
func (b *SingleBatch) hasInvalidOrEmptyTransactions() bool {
	for _, tx := range b.Transactions {
		if len(tx) == 0 || tx[0] == eth.DepositTxType {
			return true
		}
	}
	return false
}
