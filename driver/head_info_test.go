package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/lumen-stack/lumen-node/eth"
	"github.com/lumen-stack/lumen-node/rollup"
)

type stubL2Finalized struct {
	header   eth.BlockInfo
	calldata []byte
	err      error
}

func (s stubL2Finalized) FinalizedBlock(ctx context.Context) (eth.BlockInfo, []byte, error) {
	return s.header, s.calldata, s.err
}

func testRollupConfig() *rollup.Config {
	return &rollup.Config{
		Genesis: rollup.Genesis{
			L1:     eth.BlockID{Number: 100, Hash: common.HexToHash("0xaaaa")},
			L2:     eth.BlockID{Number: 0, Hash: common.HexToHash("0xbbbb")},
			L2Time: 1000,
		},
	}
}

func TestGetHeadInfoFallsBackToGenesisOnFetchError(t *testing.T) {
	cfg := testRollupConfig()
	head := GetHeadInfo(context.Background(), stubL2Finalized{err: errors.New("no finalized block yet")}, cfg)

	require.Equal(t, cfg.Genesis.L2.Number, head.L2Block.Number)
	require.Equal(t, cfg.Genesis.L2.Hash, head.L2Block.Hash)
	require.Equal(t, cfg.Genesis.L1.Number, head.L1Epoch.Number)
	require.Equal(t, uint64(0), head.SeqNumber)
}

func TestGetHeadInfoFallsBackToGenesisOnUndecodableCalldata(t *testing.T) {
	cfg := testRollupConfig()
	head := GetHeadInfo(context.Background(), stubL2Finalized{
		header:   eth.BlockInfo{Number: 500},
		calldata: []byte{0x01, 0x02, 0x03},
	}, cfg)

	require.Equal(t, cfg.Genesis.L2.Number, head.L2Block.Number)
}

func TestGetL1StartBlockSaturatesAtZero(t *testing.T) {
	require.Equal(t, uint64(0), GetL1StartBlock(5, 10))
	require.Equal(t, uint64(0), GetL1StartBlock(10, 10))
	require.Equal(t, uint64(5), GetL1StartBlock(15, 10))
}
