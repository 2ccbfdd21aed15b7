// Package eth holds the wire types shared between the derivation pipeline,
// the L1/L2 RPC sources and the engine API client: block identities, L1
// epochs, the system config, and the JSON types exchanged with the engine.
package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockID is a block number/hash pair, comparable and cheap to pass by value.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash, id.Number)
}

// BlockInfo is the identity of an L1 or L2 block header: hash, number,
// parent hash and timestamp. It is the minimal data the pipeline needs to
// reason about chain continuity without holding a full header around.
type BlockInfo struct {
	Hash       common.Hash `json:"hash"`
	Number     uint64      `json:"number"`
	ParentHash common.Hash `json:"parentHash"`
	Time       uint64      `json:"timestamp"`
}

func (b BlockInfo) ID() BlockID {
	return BlockID{Hash: b.Hash, Number: b.Number}
}

func (b BlockInfo) String() string {
	return fmt.Sprintf("%s:%d", b.Hash, b.Number)
}

// Epoch names the L1 block that originates a contiguous run of L2 blocks.
type Epoch struct {
	Number uint64      `json:"number"`
	Hash   common.Hash `json:"hash"`
	Time   uint64      `json:"timestamp"`
}

func (e Epoch) ID() BlockID {
	return BlockID{Hash: e.Hash, Number: e.Number}
}

func (e Epoch) String() string {
	return fmt.Sprintf("epoch:%d:%s", e.Number, e.Hash)
}

// HeadInfo is persisted per safe-head advance, and is recoverable from an
// L2 block's first transaction (the L1-attributes deposit, see
// derive.ParseL1InfoDepositTxData).
type HeadInfo struct {
	L2Block      BlockInfo `json:"l2Block"`
	L1Epoch      Epoch     `json:"l1Epoch"`
	SeqNumber    uint64    `json:"sequenceNumber"`
}

// SystemConfig mirrors the on-chain SystemConfigOwner-controlled values
// that the batcher and the L1-attributes deposit depend on. It changes
// over time; updates are announced by L1 log events and apply starting at
// a specific L1 block (see l1.SystemConfigUpdate).
type SystemConfig struct {
	BatcherAddr       common.Address `json:"batcherAddr"`
	BatchInboxAddr    common.Address `json:"batchInboxAddr"`
	Overhead          Bytes32        `json:"overhead"`
	Scalar            Bytes32        `json:"scalar"`
	GasLimit          uint64         `json:"gasLimit"`
	UnsafeBlockSigner common.Address `json:"unsafeBlockSigner"`
}

// Bytes32 is a fixed 32-byte value, JSON-marshaled as 0x-hex.
type Bytes32 [32]byte

func (b Bytes32) String() string { return hexutil.Encode(b[:]) }

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(b[:])), nil
}

func (b *Bytes32) UnmarshalText(text []byte) error {
	d, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid Bytes32 %q: %w", text, err)
	}
	if len(d) != 32 {
		return fmt.Errorf("invalid Bytes32 length: %d", len(d))
	}
	copy(b[:], d)
	return nil
}

// Data is an opaque RLP-encoded transaction, exactly as returned by
// eth_getBlockByNumber in "full transactions" mode re-encoded to bytes, or
// as produced by the attributes stage.
type Data = hexutil.Bytes
