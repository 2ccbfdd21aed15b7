// Package rollup holds the chain configuration shared by every stage of the
// derivation pipeline and the engine driver: genesis anchor, block timing,
// the L1 addresses the watcher filters on, and the network-upgrade
// activation times that switch the pipeline between Bedrock and Ecotone
// encodings.
package rollup

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lumen-stack/lumen-node/eth"
)

// Genesis anchors the L2 chain to a specific L1 block and L2 block, the
// pair the pipeline starts deriving from.
type Genesis struct {
	L1     eth.BlockID `json:"l1"`
	L2     eth.BlockID `json:"l2"`
	L2Time uint64      `json:"l2Time"`

	// SystemConfig is the SystemConfig in effect at the genesis L1 block,
	// before any ConfigUpdate log event has been observed.
	SystemConfig eth.SystemConfig `json:"systemConfig"`
}

// Config is the static description of an L2 chain's derivation rules. It is
// loaded once at startup from a chain.json file (see
// config.LoadRollupConfig) and never mutated afterward; SystemConfig changes
// flow through eth.SystemConfig instead, tracked by the L1 watcher.
type Config struct {
	Genesis Genesis `json:"genesis"`

	// BlockTime is the L2 block production interval in seconds.
	BlockTime uint64 `json:"blockTime"`

	// MaxSequencerDrift bounds how far an L2 block's timestamp may run
	// ahead of its L1 origin's timestamp before the next L1 origin must
	// be adopted (spec.md §4.7).
	MaxSequencerDrift uint64 `json:"maxSequencerDrift"`

	// SeqWindowSize is the number of L1 blocks a sequencing window spans;
	// batches must land within this many blocks of the epoch they claim.
	SeqWindowSize uint64 `json:"seqWindowSize"`

	// ChannelTimeout is the number of L1 blocks a channel may remain open
	// (incomplete) before the channel bank drops it.
	ChannelTimeout uint64 `json:"channelTimeout"`

	L1ChainID *big.Int `json:"l1ChainId"`
	L2ChainID *big.Int `json:"l2ChainId"`

	// RegolithTime and EcotoneTime are L2 timestamps at which the
	// corresponding hardfork activates; nil means "not yet scheduled".
	// EcotoneTime governs the L1-attributes calldata layout
	// (setL1BlockValues vs. setL1BlockValuesEcotone). Whether batcher
	// data is read from blobs or calldata depends on each transaction's
	// type, not on EcotoneTime.
	RegolithTime *uint64 `json:"regolithTime,omitempty"`
	EcotoneTime  *uint64 `json:"ecotoneTime,omitempty"`

	BatchInboxAddress      common.Address `json:"batchInboxAddress"`
	DepositContractAddress common.Address `json:"depositContractAddress"`
	L1SystemConfigAddress  common.Address `json:"l1SystemConfigAddress"`
}

// IsRegolith reports whether the Regolith upgrade is active at L2 timestamp t.
func (c *Config) IsRegolith(t uint64) bool {
	return c.RegolithTime != nil && t >= *c.RegolithTime
}

// IsEcotone reports whether the Ecotone upgrade is active at L2 timestamp t.
func (c *Config) IsEcotone(t uint64) bool {
	return c.EcotoneTime != nil && t >= *c.EcotoneTime
}

// IsEcotoneActivationBlock reports whether t is the first L2 timestamp for
// which Ecotone is active, i.e. the block that must carry the Ecotone
// network-upgrade deposit transactions (magi ecotone_upgrade.rs).
func (c *Config) IsEcotoneActivationBlock(t uint64) bool {
	return c.IsEcotone(t) && t >= c.BlockTime && !c.IsEcotone(t-c.BlockTime)
}

// TargetBlockNumber computes the L2 block number for a given L2 timestamp,
// assuming uninterrupted BlockTime-spaced production from genesis.
func (c *Config) TargetBlockNumber(timestamp uint64) (uint64, error) {
	if timestamp < c.Genesis.L2Time {
		return 0, fmt.Errorf("timestamp %d before genesis time %d", timestamp, c.Genesis.L2Time)
	}
	return c.Genesis.L2.Number + (timestamp-c.Genesis.L2Time)/c.BlockTime, nil
}

// Validate checks the invariants the rest of the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.BlockTime == 0 {
		return fmt.Errorf("block time must be positive")
	}
	if c.SeqWindowSize == 0 {
		return fmt.Errorf("sequencing window size must be positive")
	}
	if c.L1ChainID == nil || c.L2ChainID == nil {
		return fmt.Errorf("chain IDs must be set")
	}
	if c.RegolithTime == nil && c.EcotoneTime != nil {
		return fmt.Errorf("ecotone time set without regolith time")
	}
	return nil
}
