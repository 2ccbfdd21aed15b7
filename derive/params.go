// Package derive implements the four-stage derivation pipeline that turns
// L1 batcher transactions into L2 payload attributes: batcher transactions
// are split into frames (stage 1), frames are reassembled into channels
// (stage 2), channels are decompressed into batches (stage 3), and batches
// are turned into payload attributes ready for the engine driver (stage 4).
package derive

import "fmt"

// FrameV0 channel ID length, frame header layout and other wire constants,
// grounded in magi's batcher_transactions.rs / channels.rs.
const (
	ChannelIDLength = 16

	// MaxFrameLen bounds a single frame's data length as encoded on the
	// wire (a uint32 frame_data_len field).
	MaxFrameLen = 1_000_000

	// DerivationVersion0 is the only batcher-transaction version this
	// pipeline understands; the first byte of every batcher transaction's
	// calldata (or blob payload) must equal this.
	DerivationVersion0 = 0

	// MaxSpanBatchSize bounds decompressed span-batch size to avoid a
	// zip-bomb channel payload exhausting memory.
	MaxSpanBatchSize = 10_000_000
)

// ResetError signals the pipeline must be rebuilt from a new L1 epoch: an
// unexpected reorg, or state that can no longer be reconciled incrementally.
// No stage in this package returns it, and driver.Driver does not test for
// it: the driver rebuilds the pipeline on an L1 reorg update and when the
// engine rejects derived attributes.
type ResetError struct{ Err error }

func NewResetError(err error) *ResetError { return &ResetError{Err: err} }
func (e *ResetError) Error() string       { return fmt.Sprintf("reset: %v", e.Err) }
func (e *ResetError) Unwrap() error       { return e.Err }

// TemporaryError signals a transient failure (RPC timeout, not-yet-available
// data) that the driver should retry without resetting pipeline state.
type TemporaryError struct{ Err error }

func NewTemporaryError(err error) *TemporaryError { return &TemporaryError{Err: err} }
func (e *TemporaryError) Error() string            { return fmt.Sprintf("temporary: %v", e.Err) }
func (e *TemporaryError) Unwrap() error             { return e.Err }

// EOF is returned by every stage's NextX method when it has no more output
// and is waiting on its input stage to advance the L1 origin.
var EOF = fmt.Errorf("eof")
