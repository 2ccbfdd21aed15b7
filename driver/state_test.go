package driver

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/eth"
)

func originAt(number uint64) derive.L1Origin {
	hash := common.BigToHash(new(big.Int).SetUint64(number + 1))
	return derive.L1Origin{Info: eth.BlockInfo{Number: number, Hash: hash, Time: number * 12}}
}

func TestStateUpdateL1InfoTracksCurrentEpoch(t *testing.T) {
	s := NewState(eth.BlockInfo{}, eth.Epoch{}, 100)
	s.UpdateL1Info(originAt(10))
	require.Equal(t, uint64(10), s.CurrentEpochNum())

	s.UpdateL1Info(originAt(5))
	require.Equal(t, uint64(10), s.CurrentEpochNum(), "current epoch never moves backward")
}

func TestStateEpochLookupByNumberAndHash(t *testing.T) {
	s := NewState(eth.BlockInfo{}, eth.Epoch{}, 100)
	o := originAt(42)
	s.UpdateL1Info(o)

	byNumber, ok := s.EpochByNumber(42)
	require.True(t, ok)
	require.Equal(t, o.Info.Hash, byNumber.Hash)

	byHash, ok := s.EpochByHash(o.Info.Hash)
	require.True(t, ok)
	require.Equal(t, uint64(42), byHash.Number)

	_, ok = s.EpochByNumber(43)
	require.False(t, ok)
}

func TestStatePrunesEntriesOlderThanSeqWindow(t *testing.T) {
	s := NewState(eth.BlockInfo{}, eth.Epoch{}, 10)
	for n := uint64(0); n <= 20; n++ {
		s.UpdateL1Info(originAt(n))
	}
	s.UpdateSafeHead(eth.BlockInfo{}, eth.Epoch{Number: 20})

	_, ok := s.EpochByNumber(9)
	require.False(t, ok, "entries older than safeEpoch-seqWindowSize are pruned")
	_, ok = s.EpochByNumber(10)
	require.True(t, ok, "entries at the prune floor are kept")
}

func TestStatePurgeDropsEntriesPastNewSafeEpoch(t *testing.T) {
	s := NewState(eth.BlockInfo{}, eth.Epoch{}, 100)
	for n := uint64(0); n <= 10; n++ {
		s.UpdateL1Info(originAt(n))
	}

	newHead := eth.BlockInfo{Number: 5}
	newEpoch := eth.Epoch{Number: 5}
	s.Purge(newHead, newEpoch)

	_, ok := s.EpochByNumber(6)
	require.False(t, ok, "purge drops everything past the reorg point")
	_, ok = s.EpochByNumber(5)
	require.True(t, ok)

	head, epoch := s.SafeHead()
	require.Equal(t, newHead, head)
	require.Equal(t, newEpoch, epoch)
	require.Equal(t, uint64(5), s.CurrentEpochNum())
}
