package derive

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lumen-stack/lumen-node/eth"
)

// L1BlockValuesSelector is the 4-byte selector for the Bedrock
// setL1BlockValues(uint64,uint64,uint256,bytes32,uint64,bytes32,uint256,uint256)
// call, keccak256-derived exactly as magi's attributes_deposited.rs computes
// it at init time.
var L1BlockValuesSelector = selector("setL1BlockValues(uint64,uint64,uint256,bytes32,uint64,bytes32,uint256,uint256)")

// L1BlockValuesEcotoneSelector is the 4-byte selector for the Ecotone
// setL1BlockValuesEcotone() call.
var L1BlockValuesEcotoneSelector = selector("setL1BlockValuesEcotone()")

func selector(signature string) [4]byte {
	h := crypto.Keccak256([]byte(signature))
	var s [4]byte
	copy(s[:], h[:4])
	return s
}

const (
	l1InfoBedrockLen = 4 + 32*8
	l1InfoEcotoneLen = 4 + 32*5
)

// L1BlockInfo is the decoded content of an L1-attributes deposit
// transaction's calldata, in either its Bedrock or Ecotone wire format
// (magi common/attributes_deposited.rs AttributesDepositedCall).
type L1BlockInfo struct {
	Number        uint64
	Time          uint64
	BaseFee       *big.Int
	BlockHash     common.Hash
	SequenceNumber uint64
	BatcherAddr   common.Address
	L1FeeOverhead eth.Bytes32
	L1FeeScalar   eth.Bytes32

	BlobBaseFeeScalar *uint32
	BlobBaseFee       *big.Int
}

// ParseL1InfoDepositTxData decodes the calldata of an L1-attributes deposit
// transaction, dispatching on its length and selector to the Bedrock or
// Ecotone layout.
func ParseL1InfoDepositTxData(calldata []byte) (*L1BlockInfo, error) {
	switch len(calldata) {
	case l1InfoBedrockLen:
		return parseL1InfoBedrock(calldata)
	case l1InfoEcotoneLen:
		return parseL1InfoEcotone(calldata)
	default:
		return nil, fmt.Errorf("invalid L1 attributes calldata length %d", len(calldata))
	}
}

func parseL1InfoBedrock(calldata []byte) (*L1BlockInfo, error) {
	var sel [4]byte
	copy(sel[:], calldata[:4])
	if sel != L1BlockValuesSelector {
		return nil, fmt.Errorf("invalid bedrock L1 attributes selector")
	}
	off := 4
	read32 := func() []byte {
		b := calldata[off : off+32]
		off += 32
		return b
	}
	number := new(big.Int).SetBytes(read32())
	timestamp := new(big.Int).SetBytes(read32())
	baseFee := new(big.Int).SetBytes(read32())
	hash := common.BytesToHash(read32())
	seqNum := new(big.Int).SetBytes(read32())
	batcherHashBytes := read32()
	overhead := read32()
	scalar := read32()

	info := &L1BlockInfo{
		Number:         number.Uint64(),
		Time:           timestamp.Uint64(),
		BaseFee:        baseFee,
		BlockHash:      hash,
		SequenceNumber: seqNum.Uint64(),
		BatcherAddr:    common.BytesToAddress(batcherHashBytes[12:]),
	}
	copy(info.L1FeeOverhead[:], overhead)
	copy(info.L1FeeScalar[:], scalar)
	return info, nil
}

func parseL1InfoEcotone(calldata []byte) (*L1BlockInfo, error) {
	var sel [4]byte
	copy(sel[:], calldata[:4])
	if sel != L1BlockValuesEcotoneSelector {
		return nil, fmt.Errorf("invalid ecotone L1 attributes selector")
	}
	off := 4
	feeScalar := binary.BigEndian.Uint32(calldata[off : off+4])
	off += 4
	blobFeeScalar := binary.BigEndian.Uint32(calldata[off : off+4])
	off += 4
	seqNum := binary.BigEndian.Uint64(calldata[off : off+8])
	off += 8
	timestamp := binary.BigEndian.Uint64(calldata[off : off+8])
	off += 8
	number := binary.BigEndian.Uint64(calldata[off : off+8])
	off += 8
	baseFee := new(big.Int).SetBytes(calldata[off : off+32])
	off += 32
	blobBaseFee := new(big.Int).SetBytes(calldata[off : off+32])
	off += 32
	hash := common.BytesToHash(calldata[off : off+32])
	off += 32
	batcherHashBytes := calldata[off : off+32]

	info := &L1BlockInfo{
		Number:            number,
		Time:              timestamp,
		BaseFee:           baseFee,
		BlockHash:         hash,
		SequenceNumber:    seqNum,
		BatcherAddr:       common.BytesToAddress(batcherHashBytes[12:]),
		BlobBaseFeeScalar: &blobFeeScalar,
		BlobBaseFee:       blobBaseFee,
	}
	info.L1FeeScalar[28] = byte(feeScalar >> 24)
	info.L1FeeScalar[29] = byte(feeScalar >> 16)
	info.L1FeeScalar[30] = byte(feeScalar >> 8)
	info.L1FeeScalar[31] = byte(feeScalar)
	return info, nil
}

// L1InfoDepositTxGas is the fixed gas limit the L1-attributes deposit
// transaction is given; it never runs out since the setter is a handful of
// SSTOREs.
const L1InfoDepositTxGas = 150_000

// L1AttributesDepositorAddress is the account go-ethereum's block builder
// treats as the caller of the L1-attributes setter.
var L1AttributesDepositorAddress = common.HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")

// L1AttributesPredeployAddress is the L1Block predeploy address the deposit
// calls into.
var L1AttributesPredeployAddress = common.HexToAddress("0x4200000000000000000000000000000000000015")

// L1InfoDepositTx builds the first transaction of an L2 block: a deposit
// transaction calling the L1-attributes setter with the given L1 origin,
// system config and sequence number within the epoch. ecotone selects the
// Ecotone or Bedrock calldata encoding; blobBaseFee is ignored pre-Ecotone.
func L1InfoDepositTx(l1Origin eth.BlockInfo, sysCfg eth.SystemConfig, seqNumber uint64, baseFee, blobBaseFee *big.Int, ecotone bool) (*eth.DepositTx, error) {
	var calldata []byte
	if ecotone {
		calldata = encodeL1InfoEcotone(l1Origin, sysCfg, seqNumber, baseFee, blobBaseFee)
	} else {
		calldata = encodeL1InfoBedrock(l1Origin, sysCfg, seqNumber, baseFee)
	}

	to := L1AttributesPredeployAddress
	return &eth.DepositTx{
		SourceHash:          L1InfoDepositSourceHash(l1Origin.Hash, seqNumber),
		From:                L1AttributesDepositorAddress,
		To:                  &to,
		Mint:                new(big.Int),
		Value:               new(big.Int),
		Gas:                 L1InfoDepositTxGas,
		IsSystemTransaction: false,
		Data:                calldata,
	}, nil
}

func encodeL1InfoBedrock(l1Origin eth.BlockInfo, sysCfg eth.SystemConfig, seqNumber uint64, baseFee *big.Int) []byte {
	out := make([]byte, 0, l1InfoBedrockLen)
	out = append(out, L1BlockValuesSelector[:]...)
	out = append(out, leftPad32(new(big.Int).SetUint64(l1Origin.Number).Bytes())...)
	out = append(out, leftPad32(new(big.Int).SetUint64(l1Origin.Time).Bytes())...)
	out = append(out, leftPad32(orZeroBig(baseFee).Bytes())...)
	out = append(out, l1Origin.Hash.Bytes()...)
	out = append(out, leftPad32(new(big.Int).SetUint64(seqNumber).Bytes())...)
	batcherHash := make([]byte, 32)
	copy(batcherHash[12:], sysCfg.BatcherAddr.Bytes())
	out = append(out, batcherHash...)
	out = append(out, sysCfg.Overhead[:]...)
	out = append(out, sysCfg.Scalar[:]...)
	return out
}

func encodeL1InfoEcotone(l1Origin eth.BlockInfo, sysCfg eth.SystemConfig, seqNumber uint64, baseFee, blobBaseFee *big.Int) []byte {
	out := make([]byte, 0, l1InfoEcotoneLen)
	out = append(out, L1BlockValuesEcotoneSelector[:]...)
	// fee scalar / blob fee scalar are packed into the low 8 bytes of
	// sysCfg.Scalar per the Ecotone scalar encoding (magi l1/mod.rs):
	// base fee scalar in [28:32], blob base fee scalar in [24:28].
	out = append(out, sysCfg.Scalar[28:32]...)
	out = append(out, sysCfg.Scalar[24:28]...)
	seqBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBuf, seqNumber)
	out = append(out, seqBuf...)
	tsBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBuf, l1Origin.Time)
	out = append(out, tsBuf...)
	numBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(numBuf, l1Origin.Number)
	out = append(out, numBuf...)
	out = append(out, leftPad32(orZeroBig(baseFee).Bytes())...)
	out = append(out, leftPad32(orZeroBig(blobBaseFee).Bytes())...)
	out = append(out, l1Origin.Hash.Bytes()...)
	batcherHash := make([]byte, 32)
	copy(batcherHash[12:], sysCfg.BatcherAddr.Bytes())
	out = append(out, batcherHash...)
	return out
}

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func orZeroBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
