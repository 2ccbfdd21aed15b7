package derive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestSourceHashDomainsNeverCollide(t *testing.T) {
	blockHash := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	userHash := UserDepositSourceHash(blockHash, 0)
	l1InfoHash := L1InfoDepositSourceHash(blockHash, 0)
	upgradeHash := UpgradeDepositSourceHash("deposit-id-0")

	require.NotEqual(t, userHash, l1InfoHash)
	require.NotEqual(t, userHash, upgradeHash)
	require.NotEqual(t, l1InfoHash, upgradeHash)
}

func TestSourceHashIsDeterministic(t *testing.T) {
	blockHash := common.HexToHash("0xabc")
	require.Equal(t, UserDepositSourceHash(blockHash, 5), UserDepositSourceHash(blockHash, 5))
	require.NotEqual(t, UserDepositSourceHash(blockHash, 5), UserDepositSourceHash(blockHash, 6))
}

func TestL1InfoDepositSourceHashVariesBySequenceNumber(t *testing.T) {
	blockHash := common.HexToHash("0xdead")
	first := L1InfoDepositSourceHash(blockHash, 0)
	second := L1InfoDepositSourceHash(blockHash, 1)
	require.NotEqual(t, first, second)
}
