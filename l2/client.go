// Package l2 is a minimal L2 execution-layer JSON-RPC client. It
// deliberately avoids go-ethereum's core/types block/transaction decoder:
// an L2 block's first transaction is always an L1-attributes deposit, a
// transaction type (0x7E) vanilla go-ethereum has no notion of, so
// decoding a full block into *types.Block the way an L1 client safely
// can would fail outright. Instead this client decodes just the JSON
// fields each caller actually needs (sources/types.go's RPCHeader, the
// teacher's reason for the same kind of custom type, applies even more
// strongly here).
package l2

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/lumen-stack/lumen-node/engine"
	"github.com/lumen-stack/lumen-node/eth"
)

type Client struct {
	rpc *rpc.Client
}

func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing l2 rpc %s: %w", url, err)
	}
	return &Client{rpc: c}, nil
}

func (c *Client) Close() { c.rpc.Close() }

type rpcBlockHeader struct {
	Hash       common.Hash    `json:"hash"`
	Number     hexutil.Uint64 `json:"number"`
	ParentHash common.Hash    `json:"parentHash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
	Miner      common.Address `json:"miner"`
	MixHash    common.Hash    `json:"mixHash"`
	GasLimit   hexutil.Uint64 `json:"gasLimit"`
}

func (h rpcBlockHeader) info() eth.BlockInfo {
	return eth.BlockInfo{Hash: h.Hash, Number: uint64(h.Number), ParentHash: h.ParentHash, Time: uint64(h.Timestamp)}
}

type hashOnlyBlock struct {
	rpcBlockHeader
	Transactions []common.Hash `json:"transactions"`
}

// BlockByNumber fetches a block with transactions represented only by
// their hashes, everything engine.Driver's skip-fast-path needs to
// compare an already-produced block against a set of PayloadAttributes.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*engine.ExistingL2Block, error) {
	var raw hashOnlyBlock
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return nil, fmt.Errorf("fetching l2 block %d: %w", number, err)
	}
	if raw.Hash == (common.Hash{}) {
		return nil, fmt.Errorf("l2 block %d not found", number)
	}
	return &engine.ExistingL2Block{
		Info:         raw.info(),
		PrevRandao:   eth.Bytes32(raw.MixHash),
		FeeRecipient: raw.Miner,
		GasLimit:     uint64(raw.GasLimit),
		TxHashes:     raw.Transactions,
	}, nil
}

type rpcFullTransaction struct {
	Input hexutil.Bytes `json:"input"`
}

type fullBlock struct {
	rpcBlockHeader
	Transactions []rpcFullTransaction `json:"transactions"`
}

// FinalizedBlock fetches the chain's finalized block with full
// transaction objects, and returns the calldata of its first transaction
// — the L1-attributes deposit every L2 block starts with — for
// driver.GetHeadInfo to decode.
func (c *Client) FinalizedBlock(ctx context.Context) (eth.BlockInfo, []byte, error) {
	var raw fullBlock
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", "finalized", true); err != nil {
		return eth.BlockInfo{}, nil, fmt.Errorf("fetching finalized l2 block: %w", err)
	}
	if raw.Hash == (common.Hash{}) {
		return eth.BlockInfo{}, nil, fmt.Errorf("no finalized l2 block yet")
	}
	if len(raw.Transactions) == 0 {
		return eth.BlockInfo{}, nil, fmt.Errorf("finalized l2 block %d has no transactions", uint64(raw.Number))
	}
	return raw.info(), raw.Transactions[0].Input, nil
}
