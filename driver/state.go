// Package driver ties the L1 watcher, the derivation pipeline and the
// engine driver into the single top-level loop that walks an L2 chain
// forward (magi src/driver/{node_driver,info}.rs).
package driver

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lumen-stack/lumen-node/derive"
	"github.com/lumen-stack/lumen-node/eth"
)

// l1InfoCacheSize bounds how many L1 origins State keeps indexed by hash
// at once. It only needs to cover one sequencing window plus one channel
// timeout of history — anything older is unreachable once prune() runs —
// so a generous fixed size is simpler than sizing it off live config.
const l1InfoCacheSize = 4096

// State is the shared record of where L1 derivation currently stands: the
// L1 origins observed so far (indexed both by hash and by number, so the
// pipeline can resolve an epoch either way), and the current safe head and
// its originating epoch. The node driver writes it and the derivation
// pipeline reads it, so every operation is serialized by a single mutex (spec.md
// §4.2's "single writer lock").
type State struct {
	mu sync.Mutex

	l1Info   *lru.Cache[common.Hash, derive.L1Origin]
	l1Hashes map[uint64]common.Hash

	safeHead        eth.BlockInfo
	safeEpoch       eth.Epoch
	currentEpochNum uint64

	seqWindowSize uint64
}

// NewState builds a State anchored at the given safe head/epoch, the point
// the pipeline will start deriving PayloadAttributes from.
func NewState(safeHead eth.BlockInfo, safeEpoch eth.Epoch, seqWindowSize uint64) *State {
	cache, err := lru.New[common.Hash, derive.L1Origin](l1InfoCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// l1InfoCacheSize never is.
		panic(err)
	}
	return &State{
		l1Info:          cache,
		l1Hashes:        make(map[uint64]common.Hash),
		safeHead:        safeHead,
		safeEpoch:       safeEpoch,
		currentEpochNum: safeEpoch.Number,
		seqWindowSize:   seqWindowSize,
	}
}

// UpdateL1Info records a newly observed L1 origin and advances the current
// epoch number to at least its block number (magi State::update_l1_info).
func (s *State) UpdateL1Info(origin derive.L1Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.l1Info.Add(origin.Info.Hash, origin)
	s.l1Hashes[origin.Info.Number] = origin.Info.Hash
	if origin.Info.Number > s.currentEpochNum {
		s.currentEpochNum = origin.Info.Number
	}
	s.prune()
}

// UpdateSafeHead records a new safe L2 head and the L1 epoch it was
// derived from.
func (s *State) UpdateSafeHead(head eth.BlockInfo, epoch eth.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.safeHead = head
	s.safeEpoch = epoch
	s.prune()
}

// Purge discards everything derived past head/epoch, called after an L1
// reorg invalidates the assumptions the pipeline built its state on (magi
// State::purge). The caller is responsible for resetting the derivation
// pipeline itself; Purge only resets the bookkeeping this type owns.
func (s *State) Purge(head eth.BlockInfo, epoch eth.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for number, hash := range s.l1Hashes {
		if number > epoch.Number {
			delete(s.l1Hashes, number)
			s.l1Info.Remove(hash)
		}
	}
	s.safeHead = head
	s.safeEpoch = epoch
	s.currentEpochNum = epoch.Number
}

// SafeHead returns the current safe L2 head and the epoch it was derived
// from.
func (s *State) SafeHead() (eth.BlockInfo, eth.Epoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safeHead, s.safeEpoch
}

// CurrentEpochNum returns the highest L1 block number observed so far.
func (s *State) CurrentEpochNum() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentEpochNum
}

// EpochByNumber resolves the epoch (L1 origin identity) for an L1 block
// number, if it is still within the retained window.
func (s *State) EpochByNumber(number uint64) (eth.Epoch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.l1Hashes[number]
	if !ok {
		return eth.Epoch{}, false
	}
	origin, ok := s.l1Info.Get(hash)
	if !ok {
		return eth.Epoch{}, false
	}
	return toEpoch(origin), true
}

// EpochByHash resolves the epoch for an L1 block hash.
func (s *State) EpochByHash(hash common.Hash) (eth.Epoch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	origin, ok := s.l1Info.Get(hash)
	if !ok {
		return eth.Epoch{}, false
	}
	return toEpoch(origin), true
}

// L1InfoByNumber resolves the full L1 origin (including base fee and
// prevRandao) for an L1 block number.
func (s *State) L1InfoByNumber(number uint64) (derive.L1Origin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.l1Hashes[number]
	if !ok {
		return derive.L1Origin{}, false
	}
	return s.l1Info.Get(hash)
}

// L1InfoByHash resolves the full L1 origin for an L1 block hash.
func (s *State) L1InfoByHash(hash common.Hash) (derive.L1Origin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l1Info.Get(hash)
}

// prune drops L1 origins that fall outside the retention window: nothing
// before safe_epoch.number - seq_window_size can still be referenced by a
// future batch (spec.md §4.2's prune rule). Must be called with mu held.
func (s *State) prune() {
	if s.safeEpoch.Number < s.seqWindowSize {
		return
	}
	floor := s.safeEpoch.Number - s.seqWindowSize
	for number, hash := range s.l1Hashes {
		if number < floor {
			delete(s.l1Hashes, number)
			s.l1Info.Remove(hash)
		}
	}
}

func toEpoch(origin derive.L1Origin) eth.Epoch {
	return eth.Epoch{Number: origin.Info.Number, Hash: origin.Info.Hash, Time: origin.Info.Time}
}
