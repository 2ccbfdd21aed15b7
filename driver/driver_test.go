package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumen-stack/lumen-node/eth"
)

func TestFindFinalizationCandidatePromotesLastEligibleEntry(t *testing.T) {
	entries := []unfinalizedBlock{
		{SafeHead: eth.BlockInfo{Number: 1}, SeqNumber: 0, L1InclusionBlock: 10},
		{SafeHead: eth.BlockInfo{Number: 2}, SeqNumber: 1, L1InclusionBlock: 10},
		{SafeHead: eth.BlockInfo{Number: 3}, SeqNumber: 0, L1InclusionBlock: 12},
		{SafeHead: eth.BlockInfo{Number: 4}, SeqNumber: 0, L1InclusionBlock: 20},
	}

	idx := findFinalizationCandidate(entries, 15)
	require.Equal(t, 2, idx, "entry 2 (block 3) is the last epoch-opening entry whose L1 inclusion is finalized")

	remaining := make([]unfinalizedBlock, len(entries)-idx-1)
	copy(remaining, entries[idx+1:])
	require.Len(t, remaining, 1)
	require.Equal(t, uint64(4), remaining[0].SafeHead.Number)
}

func TestFindFinalizationCandidateIgnoresMidEpochEntries(t *testing.T) {
	entries := []unfinalizedBlock{
		{SeqNumber: 1, L1InclusionBlock: 1},
		{SeqNumber: 2, L1InclusionBlock: 1},
	}
	require.Equal(t, -1, findFinalizationCandidate(entries, 100), "no epoch-opening entry means nothing can be promoted")
}

func TestFindFinalizationCandidateNoEligibleEntry(t *testing.T) {
	entries := []unfinalizedBlock{
		{SeqNumber: 0, L1InclusionBlock: 100},
	}
	require.Equal(t, -1, findFinalizationCandidate(entries, 5))
}

func TestSyncedReportsWhetherUnfinalizedQueueIsEmpty(t *testing.T) {
	d := &Driver{}
	require.True(t, d.synced())

	d.unfinalized = []unfinalizedBlock{{}}
	require.False(t, d.synced())
}
