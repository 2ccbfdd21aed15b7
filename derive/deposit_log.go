package derive

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransactionDepositedTopic is the keccak256 of
// TransactionDeposited(address,address,uint256,bytes), the OptimismPortal
// event every user deposit is logged under.
var TransactionDepositedTopic = crypto.Keccak256Hash([]byte("TransactionDeposited(address,address,uint256,bytes)"))

// DepositContractVersion0 is the only opaque-data version this decoder
// understands, taken from the top 2 bytes of the indexed version field in
// the real event; magi's UserDeposited::from_log treats the opaque field as
// always version 0.
const DepositContractVersion0 = 0

// DecodeDepositLog extracts a UserDeposit from a TransactionDeposited log
// emitted by the deposit contract. The opaque data layout (magi
// derive/stages/attributes.rs UserDeposited::from_log) is:
//
//	mint        [0:32]   big-endian uint256
//	value       [32:64]  big-endian uint256
//	gas         [64:72]  big-endian uint64
//	isCreation  [72]     bool
//	data        [73:]    calldata
func DecodeDepositLog(l types.Log) (*UserDeposit, error) {
	if len(l.Topics) < 3 {
		return nil, fmt.Errorf("deposit log has %d topics, want at least 3", len(l.Topics))
	}
	if l.Topics[0] != TransactionDepositedTopic {
		return nil, fmt.Errorf("log is not a TransactionDeposited event")
	}
	from := common.BytesToAddress(l.Topics[1].Bytes())
	to := common.BytesToAddress(l.Topics[2].Bytes())

	// l.Data is abi-encoded as (uint256 version, bytes opaqueData); skip
	// the 32-byte version word and the bytes length/offset header words.
	if len(l.Data) < 32*3 {
		return nil, fmt.Errorf("deposit log data too short: %d bytes", len(l.Data))
	}
	opaqueLen := new(big.Int).SetBytes(l.Data[64:96]).Uint64()
	if uint64(len(l.Data)) < 96+opaqueLen {
		return nil, fmt.Errorf("deposit log declares opaque data longer than available: %d", opaqueLen)
	}
	opaque := l.Data[96 : 96+opaqueLen]
	if len(opaque) < 73 {
		return nil, fmt.Errorf("deposit opaque data too short: %d bytes", len(opaque))
	}

	mint := new(big.Int).SetBytes(opaque[0:32])
	value := new(big.Int).SetBytes(opaque[32:64])
	gas := new(big.Int).SetBytes(opaque[64:72]).Uint64()
	isCreation := opaque[72] != 0
	data := opaque[73:]

	dep := &UserDeposit{
		From:                from,
		Mint:                mint,
		Value:               value,
		Gas:                 gas,
		IsSystemTransaction: false,
		Data:                append([]byte(nil), data...),
		L1BlockHash:         l.BlockHash,
		LogIndex:            uint64(l.Index),
	}
	if !isCreation {
		dep.To = &to
	}
	return dep, nil
}
