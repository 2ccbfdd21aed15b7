package l1

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lumen-stack/lumen-node/derive"
)

// LogFilterer is the subset of ethclient.Client the L1 watcher needs to
// pull event logs, narrowed so the watcher can be driven by a mock in
// tests without standing up a real RPC endpoint.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// FetchDeposits returns every user deposit logged by the deposit contract
// in [fromBlock, toBlock], bucketed by the L1 block number it was included
// in, mirroring magi l1/chain_watcher.rs InnerWatcher::get_deposits, which
// fetches in batches of 1000 blocks and caches the per-block buckets.
func FetchDeposits(ctx context.Context, client LogFilterer, depositContract common.Address, fromBlock, toBlock uint64) (map[uint64][]derive.UserDeposit, error) {
	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{depositContract},
		Topics:    [][]common.Hash{{derive.TransactionDepositedTopic}},
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
	})
	if err != nil {
		return nil, fmt.Errorf("filtering deposit logs [%d,%d]: %w", fromBlock, toBlock, err)
	}

	byBlock := make(map[uint64][]derive.UserDeposit, toBlock-fromBlock+1)
	for _, l := range logs {
		dep, err := derive.DecodeDepositLog(l)
		if err != nil {
			return nil, fmt.Errorf("decoding deposit log at block %d: %w", l.BlockNumber, err)
		}
		byBlock[l.BlockNumber] = append(byBlock[l.BlockNumber], *dep)
	}
	return byBlock, nil
}
