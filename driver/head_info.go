package driver

import (
	"context"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

// L2FinalizedBlock is the narrow L2 RPC surface needed to recover where
// derivation left off at startup: the finalized block's header plus the
// calldata of its first transaction (the L1-attributes deposit). The
// calldata comes straight from the JSON-RPC "input" field of that
// transaction, so, unlike reading an L2 block's raw transaction bytes,
// this never requires decoding a deposit transaction through
// go-ethereum's type-oblivious core/types decoder.
type L2FinalizedBlock interface {
	FinalizedBlock(ctx context.Context) (header eth.BlockInfo, firstTxCalldata []byte, err error)
}

// GetHeadInfo recovers the finalized L2 head's identity, originating L1
// epoch and sequence number by decoding that block's own L1-attributes
// deposit transaction, so a restarted node resumes exactly where it left
// off instead of re-deriving from genesis (magi driver/info.rs
// HeadInfoQuery::get_head_info). If no finalized L2 block can be read —
// a brand new chain — it falls back to the configured genesis.
func GetHeadInfo(ctx context.Context, l2 L2FinalizedBlock, cfg *rollup.Config) eth.HeadInfo {
	header, calldata, err := l2.FinalizedBlock(ctx)
	if err != nil {
		return genesisHeadInfo(cfg)
	}
	info, err := derive.ParseL1InfoDepositTxData(calldata)
	if err != nil {
		return genesisHeadInfo(cfg)
	}
	return eth.HeadInfo{
		L2Block:   header,
		L1Epoch:   eth.Epoch{Number: info.Number, Hash: info.BlockHash, Time: info.Time},
		SeqNumber: info.SequenceNumber,
	}
}

func genesisHeadInfo(cfg *rollup.Config) eth.HeadInfo {
	return eth.HeadInfo{
		L2Block: eth.BlockInfo{
			Hash:   cfg.Genesis.L2.Hash,
			Number: cfg.Genesis.L2.Number,
			Time:   cfg.Genesis.L2Time,
		},
		L1Epoch: eth.Epoch{
			Number: cfg.Genesis.L1.Number,
			Hash:   cfg.Genesis.L1.Hash,
		},
		SeqNumber: 0,
	}
}

// GetL1StartBlock computes the L1 block derivation must restart scanning
// from for a given epoch: far enough back that an already-open channel
// spanning up to channelTimeout blocks is still fully visible (magi
// node_driver.rs get_l1_start_block's saturating_sub).
func GetL1StartBlock(epochNumber, channelTimeout uint64) uint64 {
	if epochNumber < channelTimeout {
		return 0
	}
	return epochNumber - channelTimeout
}
