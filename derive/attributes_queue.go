package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// L2FeeVaultAddress is the suggested fee recipient for every derived block,
// the SequencerFeeVault predeploy.
var L2FeeVaultAddress = common.HexToAddress("0x4200000000000000000000000000000000000011")

// UserDeposit is a deposit extracted from one TransactionDeposited log on
// L1, ready to be turned into a deposit transaction for the first block of
// its epoch.
type UserDeposit struct {
	From                common.Address
	To                  *common.Address
	Mint                *big.Int
	Value               *big.Int
	Gas                 uint64
	IsSystemTransaction bool
	Data                []byte

	L1BlockHash common.Hash
	LogIndex    uint64
}

// AttributesQueue is stage 4, the final stage: it turns each decoded batch
// block into full PayloadAttributes, prepending the L1-attributes deposit
// transaction (and, for the first block of an epoch, every user deposit
// from that epoch) ahead of the batch's own transactions (magi
// derive/stages/attributes.rs Attributes::derive_attributes).
type AttributesQueue struct {
	cfg    *rollup.Config
	prev   *BatchQueue
	epoch  uint64
	seqNum uint64

	// deposits maps an L1 epoch number to the user deposits observed in
	// that epoch's block, supplied by the L1 watcher.
	deposits map[uint64][]UserDeposit
}

func NewAttributesQueue(cfg *rollup.Config, prev *BatchQueue, deposits map[uint64][]UserDeposit) *AttributesQueue {
	return &AttributesQueue{cfg: cfg, prev: prev, deposits: deposits}
}

// NextAttributes pulls the next decoded batch block and turns it into
// PayloadAttributes against the given L1 origin info and system config.
// prevRandao is the L1 origin's mix digest, which post-merge L1 doubles as
// the deterministic per-block randomness PayloadAttributes propagates down
// to the L2 block header.
func (q *AttributesQueue) NextAttributes(l1Origin eth.BlockInfo, prevRandao eth.Bytes32, sysCfg eth.SystemConfig, baseFee, blobBaseFee *big.Int) (*eth.PayloadAttributes, error) {
	block, err := q.prev.NextBatch(l1Origin.Number)
	if err != nil {
		return nil, err
	}

	if block.EpochNum != q.epoch {
		q.seqNum = 0
		q.epoch = block.EpochNum
	} else {
		q.seqNum++
	}

	ecotone := q.cfg.IsEcotone(block.Timestamp)

	l1InfoTx, err := L1InfoDepositTx(l1Origin, sysCfg, q.seqNum, baseFee, blobBaseFee, ecotone)
	if err != nil {
		return nil, fmt.Errorf("building L1 attributes deposit: %w", err)
	}
	l1InfoRaw, err := l1InfoTx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding L1 attributes deposit: %w", err)
	}

	txs := make([][]byte, 0, len(block.Transactions)+1)
	txs = append(txs, l1InfoRaw)

	if q.seqNum == 0 {
		for _, d := range q.deposits[block.EpochNum] {
			dep := &eth.DepositTx{
				SourceHash:          UserDepositSourceHash(d.L1BlockHash, d.LogIndex),
				From:                d.From,
				To:                  d.To,
				Mint:                d.Mint,
				Value:               d.Value,
				Gas:                 d.Gas,
				IsSystemTransaction: d.IsSystemTransaction,
				Data:                d.Data,
			}
			raw, err := dep.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("encoding user deposit: %w", err)
			}
			txs = append(txs, raw)
		}
	}

	if q.cfg.IsEcotoneActivationBlock(block.Timestamp) {
		upgradeTxs, err := EcotoneUpgradeTransactions()
		if err != nil {
			return nil, fmt.Errorf("building ecotone upgrade transactions: %w", err)
		}
		txs = append(txs, upgradeTxs...)
	}

	txs = append(txs, block.Transactions...)

	dataTxs := make([]eth.Data, len(txs))
	for i, raw := range txs {
		dataTxs[i] = raw
	}
	gasLimit := hexutil.Uint64(sysCfg.GasLimit)

	return &eth.PayloadAttributes{
		Timestamp:             hexutil.Uint64(block.Timestamp),
		PrevRandao:            prevRandao,
		SuggestedFeeRecipient: L2FeeVaultAddress,
		Transactions:          dataTxs,
		NoTxPool:              true,
		GasLimit:              &gasLimit,
		Epoch:                 eth.Epoch{Number: block.EpochNum, Hash: block.EpochHash, Time: l1Origin.Time},
		L1InclusionBlock:      l1Origin.Number,
		SeqNumber:             q.seqNum,
	}, nil
}
