package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/lumen-stack/lumen-node/eth"
)

func TestAttributesMatchComparesTransactionsByHash(t *testing.T) {
	tx1 := []byte{0x01, 0x02, 0x03}
	tx2 := []byte{0x04, 0x05}
	gasLimit := hexutil.Uint64(30_000_000)

	attrs := &eth.PayloadAttributes{
		Timestamp:             1000,
		PrevRandao:            eth.Bytes32{0x1},
		SuggestedFeeRecipient: common.HexToAddress("0xfee"),
		GasLimit:              &gasLimit,
		Transactions:          []eth.Data{tx1, tx2},
	}
	block := &ExistingL2Block{
		Info:         eth.BlockInfo{Time: 1000},
		PrevRandao:   eth.Bytes32{0x1},
		FeeRecipient: common.HexToAddress("0xfee"),
		GasLimit:     30_000_000,
		TxHashes:     []common.Hash{crypto.Keccak256Hash(tx1), crypto.Keccak256Hash(tx2)},
	}

	require.True(t, attributesMatch(attrs, block))
}

func TestAttributesMatchRejectsDifferentTransactionSet(t *testing.T) {
	tx1 := []byte{0x01, 0x02, 0x03}
	gasLimit := hexutil.Uint64(30_000_000)

	attrs := &eth.PayloadAttributes{
		Timestamp:    1000,
		GasLimit:     &gasLimit,
		Transactions: []eth.Data{tx1},
	}
	block := &ExistingL2Block{
		Info:     eth.BlockInfo{Time: 1000},
		GasLimit: 30_000_000,
		TxHashes: []common.Hash{crypto.Keccak256Hash([]byte{0xff})},
	}

	require.False(t, attributesMatch(attrs, block))
}

func TestAttributesMatchRejectsDifferentTimestamp(t *testing.T) {
	attrs := &eth.PayloadAttributes{Timestamp: 1000}
	block := &ExistingL2Block{Info: eth.BlockInfo{Time: 1001}}
	require.False(t, attributesMatch(attrs, block))
}
