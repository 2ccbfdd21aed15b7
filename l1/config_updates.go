package l1

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lumen-stack/lumen-node/eth"
)

// ConfigUpdateTopic is the keccak256 of ConfigUpdate(uint256,uint8,bytes),
// emitted by the SystemConfig contract whenever an owner-controlled value
// changes (magi l1/chain_watcher.rs CONFIG_UPDATE_TOPIC).
var ConfigUpdateTopic = crypto.Keccak256Hash([]byte("ConfigUpdate(uint256,uint8,bytes)"))

// configUpdateKind mirrors the uint8 indexed in a ConfigUpdate log.
type configUpdateKind uint8

const (
	updateKindBatcherAddr       configUpdateKind = 0
	updateKindFeeScalars        configUpdateKind = 1
	updateKindGasLimit          configUpdateKind = 2
	updateKindUnsafeBlockSigner configUpdateKind = 3
)

// SystemConfigUpdate is one decoded ConfigUpdate log, ready to be folded
// into the eth.SystemConfig in effect as of the block it was emitted in.
type SystemConfigUpdate struct {
	L1BlockNum uint64
	Apply      func(cfg eth.SystemConfig) eth.SystemConfig
}

// DecodeConfigUpdateLog decodes a ConfigUpdate event into the mutation it
// describes. The non-indexed data word layout for each kind matches the
// SystemConfig contract's abi.encode of its single changed field.
func DecodeConfigUpdateLog(l types.Log) (*SystemConfigUpdate, error) {
	if len(l.Topics) < 2 || l.Topics[0] != ConfigUpdateTopic {
		return nil, fmt.Errorf("log is not a ConfigUpdate event")
	}
	kind := configUpdateKind(new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64())

	// l.Data is abi-encoded as (bytes data); skip the offset and length
	// header words to reach the actual payload.
	if len(l.Data) < 64 {
		return nil, fmt.Errorf("config update log data too short: %d bytes", len(l.Data))
	}
	payloadLen := new(big.Int).SetBytes(l.Data[32:64]).Uint64()
	if uint64(len(l.Data)) < 64+payloadLen {
		return nil, fmt.Errorf("config update log declares payload longer than available")
	}
	payload := l.Data[64 : 64+payloadLen]

	switch kind {
	case updateKindBatcherAddr:
		if len(payload) < 32 {
			return nil, fmt.Errorf("batcher addr update payload too short")
		}
		addr := common.BytesToAddress(payload[12:32])
		return &SystemConfigUpdate{L1BlockNum: l.BlockNumber, Apply: func(cfg eth.SystemConfig) eth.SystemConfig {
			cfg.BatcherAddr = addr
			return cfg
		}}, nil
	case updateKindFeeScalars:
		if len(payload) < 64 {
			return nil, fmt.Errorf("fee scalar update payload too short")
		}
		var overhead, scalar eth.Bytes32
		copy(overhead[:], payload[0:32])
		copy(scalar[:], payload[32:64])
		return &SystemConfigUpdate{L1BlockNum: l.BlockNumber, Apply: func(cfg eth.SystemConfig) eth.SystemConfig {
			cfg.Overhead = overhead
			cfg.Scalar = scalar
			return cfg
		}}, nil
	case updateKindGasLimit:
		if len(payload) < 32 {
			return nil, fmt.Errorf("gas limit update payload too short")
		}
		gasLimit := new(big.Int).SetBytes(payload[0:32]).Uint64()
		return &SystemConfigUpdate{L1BlockNum: l.BlockNumber, Apply: func(cfg eth.SystemConfig) eth.SystemConfig {
			cfg.GasLimit = gasLimit
			return cfg
		}}, nil
	case updateKindUnsafeBlockSigner:
		if len(payload) < 32 {
			return nil, fmt.Errorf("unsafe block signer update payload too short")
		}
		addr := common.BytesToAddress(payload[12:32])
		return &SystemConfigUpdate{L1BlockNum: l.BlockNumber, Apply: func(cfg eth.SystemConfig) eth.SystemConfig {
			cfg.UnsafeBlockSigner = addr
			return cfg
		}}, nil
	default:
		return nil, fmt.Errorf("unknown config update kind %d", kind)
	}
}
