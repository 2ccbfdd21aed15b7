package l1

import (
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	minBlobBaseFee            = uint256.NewInt(1)
	blobBaseFeeUpdateFraction = uint256.NewInt(3338477)
)

// eip4844BlobBaseFee computes the blob base fee for a block from its
// excess blob gas accumulator, the same fake-exponential formula EIP-4844
// defines (and go-ethereum's consensus/misc/eip4844.CalcBlobFee implements
// against a full ChainConfig/Header pair); reimplemented directly here
// since deriving a PayloadAttributes' blob base fee only needs the scalar,
// not a whole chain config. Uses uint256.Int rather than math/big the way
// op-geth's own fee arithmetic does, since every value in this formula
// fits comfortably in 256 bits and uint256 avoids big.Int's heap churn.
func eip4844BlobBaseFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(minBlobBaseFee, uint256.NewInt(excessBlobGas), blobBaseFeeUpdateFraction).ToBig()
}

// fakeExponential approximates factor * e**(numerator/denominator) using
// the integer Taylor-series expansion EIP-4844 specifies.
func fakeExponential(factor, numerator, denominator *uint256.Int) *uint256.Int {
	i := uint256.NewInt(1)
	output := uint256.NewInt(0)
	numeratorAccum := new(uint256.Int).Mul(factor, denominator)

	for !numeratorAccum.IsZero() {
		output.Add(output, numeratorAccum)

		numeratorAccum.Mul(numeratorAccum, numerator)
		numeratorAccum.Div(numeratorAccum, denominator)
		numeratorAccum.Div(numeratorAccum, i)

		i.AddUint64(i, 1)
	}
	return output.Div(output, denominator)
}

func filterQuery(addr common.Address, topic common.Hash, fromBlock, toBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{topic}},
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
	}
}
