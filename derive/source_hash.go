package derive

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lumen-stack/lumen-node/eth"
)

// UserDepositSourceHash computes the source hash for a user deposit
// extracted from a TransactionDeposited log, domain-separating it from
// L1-attributes and upgrade deposits so the three can never collide
// (magi ecotone_upgrade.rs UserDepositSource::source_hash).
func UserDepositSourceHash(l1BlockHash common.Hash, logIndex uint64) common.Hash {
	return depositSourceHash(eth.UserDepositSource, depositIDHash(l1BlockHash, logIndex))
}

// L1InfoDepositSourceHash computes the source hash for the L1-attributes
// deposit transaction that opens every L2 block.
func L1InfoDepositSourceHash(l1BlockHash common.Hash, seqNumber uint64) common.Hash {
	return depositSourceHash(eth.L1InfoDepositSource, depositIDHash(l1BlockHash, seqNumber))
}

// UpgradeDepositSourceHash computes the source hash for a network-upgrade
// deposit transaction, identified by a unique human-readable intent string
// rather than an L1 block/index pair.
func UpgradeDepositSourceHash(intent string) common.Hash {
	return depositSourceHash(eth.UpgradeDepositSource, crypto.Keccak256Hash([]byte(intent)))
}

func depositIDHash(l1BlockHash common.Hash, index uint64) common.Hash {
	var input [64]byte
	copy(input[:32], l1BlockHash[:])
	binary.BigEndian.PutUint64(input[56:64], index)
	return crypto.Keccak256Hash(input[:])
}

func depositSourceHash(domain eth.DepositSourceDomain, idHash common.Hash) common.Hash {
	var input [64]byte
	binary.BigEndian.PutUint64(input[24:32], uint64(domain))
	copy(input[32:], idHash[:])
	return crypto.Keccak256Hash(input[:])
}
