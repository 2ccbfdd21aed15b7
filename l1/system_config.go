package l1

import (
	"fmt"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/eth"
)

// SystemConfigFromL2Block reconstructs the SystemConfig in effect for an L2
// block from that block's own state: the batcher address and fee scalars
// are recovered by decoding the L1-attributes deposit transaction every L2
// block starts with, and the gas limit is read straight off the header
// (magi l1/chain_watcher.rs InnerWatcher::new, the "restart from the middle
// of the chain" path, used when the rollup driver's safe head is already
// past L2 genesis). firstTxRaw is the opaque EIP-2718 encoding of the
// block's first transaction, fetched directly rather than through
// go-ethereum's transaction decoder since vanilla go-ethereum has no
// notion of the deposit transaction type.
func SystemConfigFromL2Block(blockNumber, gasLimit uint64, firstTxRaw []byte, prevConfig eth.SystemConfig) (eth.SystemConfig, error) {
	dep, err := eth.UnmarshalDepositTx(firstTxRaw)
	if err != nil {
		return eth.SystemConfig{}, fmt.Errorf("l2 block %d: expected an L1-attributes deposit as its first transaction: %w", blockNumber, err)
	}
	info, err := derive.ParseL1InfoDepositTxData(dep.Data)
	if err != nil {
		return eth.SystemConfig{}, fmt.Errorf("decoding L1-attributes deposit calldata: %w", err)
	}

	return eth.SystemConfig{
		BatcherAddr: info.BatcherAddr,
		Overhead:    info.L1FeeOverhead,
		Scalar:      info.L1FeeScalar,
		GasLimit:    gasLimit,
		// The unsafe block signer is not recoverable from the deposit
		// calldata; it is carried over from the previously known value and
		// kept up to date by ConfigUpdate log events going forward.
		UnsafeBlockSigner: prevConfig.UnsafeBlockSigner,
		BatchInboxAddr:    prevConfig.BatchInboxAddr,
	}, nil
}
