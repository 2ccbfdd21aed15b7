package eth

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// DepositSourceDomain distinguishes the three places a deposit transaction's
// source hash can come from, keccak-domain-separated so that a user deposit,
// an L1-attributes deposit and a network-upgrade deposit can never collide
// (magi derive/ecotone_upgrade.rs: DepositSourceDomainIdentifier).
type DepositSourceDomain uint64

const (
	UserDepositSource    DepositSourceDomain = 0
	L1InfoDepositSource  DepositSourceDomain = 1
	UpgradeDepositSource DepositSourceDomain = 2
)

// DepositTx is the decoded form of an EIP-2718 type-0x7E deposit
// transaction, shared by the L1-attributes deposit and user deposits
// extracted from TransactionDeposited log events.
type DepositTx struct {
	SourceHash          common.Hash
	From                common.Address
	To                  *common.Address // nil for contract creation
	Mint                *big.Int
	Value               *big.Int
	Gas                 uint64
	IsSystemTransaction bool
	Data                []byte
}

// DepositTxType is the EIP-2718 transaction type byte for deposit
// transactions, introduced in Bedrock.
const DepositTxType = 0x7E

// depositTxRLP is the exact field order of a type-0x7E transaction's RLP
// payload (EIP-2718 envelope: type byte followed by this list), matching
// op-geth's DepositTx.
type depositTxRLP struct {
	SourceHash          common.Hash
	From                common.Address
	To                  []byte // empty for contract creation, else 20-byte address
	Mint                *big.Int
	Value               *big.Int
	Gas                 uint64
	IsSystemTransaction bool
	Data                []byte
}

// MarshalBinary returns the full EIP-2718 encoding of the deposit
// transaction: the 0x7E type byte followed by its RLP payload.
func (tx *DepositTx) MarshalBinary() ([]byte, error) {
	raw := depositTxRLP{
		SourceHash:          tx.SourceHash,
		From:                tx.From,
		Mint:                orZero(tx.Mint),
		Value:               orZero(tx.Value),
		Gas:                 tx.Gas,
		IsSystemTransaction: tx.IsSystemTransaction,
		Data:                tx.Data,
	}
	if tx.To != nil {
		raw.To = tx.To.Bytes()
	}

	var buf bytes.Buffer
	buf.WriteByte(DepositTxType)
	if err := rlp.Encode(&buf, &raw); err != nil {
		return nil, fmt.Errorf("encoding deposit transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalDepositTx decodes a full EIP-2718 deposit transaction (type byte
// plus RLP payload) produced by MarshalBinary.
func UnmarshalDepositTx(data []byte) (*DepositTx, error) {
	if len(data) == 0 || data[0] != DepositTxType {
		return nil, fmt.Errorf("not a deposit transaction")
	}
	var raw depositTxRLP
	if err := rlp.DecodeBytes(data[1:], &raw); err != nil {
		return nil, fmt.Errorf("decoding deposit transaction: %w", err)
	}
	tx := &DepositTx{
		SourceHash:          raw.SourceHash,
		From:                raw.From,
		Mint:                raw.Mint,
		Value:               raw.Value,
		Gas:                 raw.Gas,
		IsSystemTransaction: raw.IsSystemTransaction,
		Data:                raw.Data,
	}
	if len(raw.To) == 20 {
		addr := common.BytesToAddress(raw.To)
		tx.To = &addr
	} else if len(raw.To) != 0 {
		return nil, fmt.Errorf("invalid deposit transaction recipient length %d", len(raw.To))
	}
	return tx, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
