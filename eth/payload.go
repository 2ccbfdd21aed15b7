package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PayloadID identifies a payload build job on the engine, returned by
// engine_forkchoiceUpdatedV2 and consumed by engine_getPayloadV2.
type PayloadID [8]byte

func (id PayloadID) String() string { return hexutil.Encode(id[:]) }

func (id PayloadID) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(id[:])), nil
}

func (id *PayloadID) UnmarshalText(text []byte) error {
	d, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid PayloadID %q: %w", text, err)
	}
	if len(d) != 8 {
		return fmt.Errorf("invalid PayloadID length: %d", len(d))
	}
	copy(id[:], d)
	return nil
}

// PayloadAttributes is the input to engine_forkchoiceUpdatedV2 that asks the
// engine to build a new block. Transactions are pre-populated (no_tx_pool is
// always true for derived blocks) with the L1-attributes deposit, any user
// deposits for the first block of an epoch, and the batch's transactions.
type PayloadAttributes struct {
	Timestamp             hexutil.Uint64  `json:"timestamp"`
	PrevRandao            Bytes32         `json:"prevRandao"`
	SuggestedFeeRecipient common.Address  `json:"suggestedFeeRecipient"`
	Transactions          []Data          `json:"transactions,omitempty"`
	NoTxPool              bool            `json:"noTxPool,omitempty"`
	GasLimit              *hexutil.Uint64 `json:"gasLimit,omitempty"`
	Withdrawals           *[]*Withdrawal  `json:"withdrawals,omitempty"`

	// Not sent over the wire; bookkeeping the driver needs to advance State
	// and the finality tracker once the engine accepts this payload.
	Epoch            Epoch  `json:"-"`
	L1InclusionBlock uint64 `json:"-"`
	SeqNumber        uint64 `json:"-"`
}

// Withdrawal mirrors go-ethereum's EIP-4895 withdrawal; L2 withdrawals are
// always empty post-Bedrock but the field must round-trip for JSON parity
// with the engine API.
type Withdrawal struct {
	Index          hexutil.Uint64 `json:"index"`
	ValidatorIndex hexutil.Uint64 `json:"validatorIndex"`
	Address        common.Address `json:"address"`
	Amount         hexutil.Uint64 `json:"amount"`
}

// ExecutionPayload is the engine's block representation, as returned by
// engine_getPayloadV2 and submitted via engine_newPayloadV2.
type ExecutionPayload struct {
	ParentHash    common.Hash    `json:"parentHash"`
	FeeRecipient  common.Address `json:"feeRecipient"`
	StateRoot     Bytes32        `json:"stateRoot"`
	ReceiptsRoot  Bytes32        `json:"receiptsRoot"`
	LogsBloom     hexutil.Bytes  `json:"logsBloom"`
	PrevRandao    Bytes32        `json:"prevRandao"`
	BlockNumber   hexutil.Uint64 `json:"blockNumber"`
	GasLimit      hexutil.Uint64 `json:"gasLimit"`
	GasUsed       hexutil.Uint64 `json:"gasUsed"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	ExtraData     hexutil.Bytes  `json:"extraData"`
	BaseFeePerGas hexutil.Big    `json:"baseFeePerGas"`
	BlockHash     common.Hash    `json:"blockHash"`
	Transactions  []Data         `json:"transactions"`
	Withdrawals   []*Withdrawal  `json:"withdrawals,omitempty"`
}

func (p *ExecutionPayload) ID() BlockID {
	return BlockID{Hash: p.BlockHash, Number: uint64(p.BlockNumber)}
}

func (p *ExecutionPayload) Info() BlockInfo {
	return BlockInfo{
		Hash:       p.BlockHash,
		Number:     uint64(p.BlockNumber),
		ParentHash: p.ParentHash,
		Time:       uint64(p.Timestamp),
	}
}

// ExecutionPayloadEnvelope wraps the payload with the Ecotone-era
// accompanying fields, mirroring engine_getPayloadV3 shape; unused fields
// are nil pre-Ecotone.
type ExecutionPayloadEnvelope struct {
	ExecutionPayload      *ExecutionPayload `json:"executionPayload"`
	ParentBeaconBlockRoot *common.Hash      `json:"parentBeaconBlockRoot,omitempty"`
}

// ForkchoiceState is the triple communicated to the execution engine on
// every forkchoice update.
type ForkchoiceState struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// Status is the engine's verdict on a payload or forkchoice update.
type Status string

const (
	ExecutionValid            Status = "VALID"
	ExecutionInvalid          Status = "INVALID"
	ExecutionSyncing          Status = "SYNCING"
	ExecutionAccepted         Status = "ACCEPTED"
	ExecutionInvalidBlockHash Status = "INVALID_BLOCK_HASH"
)

// PayloadStatusV1 is the status object embedded in both newPayload and
// forkchoiceUpdated responses.
type PayloadStatusV1 struct {
	Status          Status       `json:"status"`
	LatestValidHash *common.Hash `json:"latestValidHash,omitempty"`
	ValidationError *string      `json:"validationError,omitempty"`
}

// ForkchoiceUpdatedResult is the return value of engine_forkchoiceUpdatedV2.
type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatusV1 `json:"payloadStatus"`
	PayloadID     *PayloadID      `json:"payloadId,omitempty"`
}

// GetPayloadResponse is the return value of engine_getPayloadV2.
type GetPayloadResponse struct {
	ExecutionPayload *ExecutionPayload `json:"executionPayload"`
}
