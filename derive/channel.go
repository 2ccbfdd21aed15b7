package derive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/klauspost/compress/zlib"
)

// pendingChannel accumulates frames for one channel ID until every frame
// number from 0..highestFrameNumber has been seen (magi channels.rs
// PendingChannel).
type pendingChannel struct {
	id              [ChannelIDLength]byte
	openL1Block     uint64
	frames          map[uint16][]byte
	highestFrame    uint16
	sawLastFrame    bool
	size            int
}

func (p *pendingChannel) isReady() bool {
	if !p.sawLastFrame {
		return false
	}
	for i := uint16(0); i <= p.highestFrame; i++ {
		if _, ok := p.frames[i]; !ok {
			return false
		}
	}
	return true
}

func (p *pendingChannel) assemble() []byte {
	var buf bytes.Buffer
	for i := uint16(0); i <= p.highestFrame; i++ {
		buf.Write(p.frames[i])
	}
	return buf.Bytes()
}

// ChannelBank is stage 2: it consumes frames in L1 order and reassembles
// them into complete channel payloads. Channels that stay open longer than
// ChannelTimeout L1 blocks are dropped without ever producing output
// (spec.md §4.4 / magi channels.rs Channels::push_frame).
type ChannelBank struct {
	log            log.Logger
	channelTimeout uint64

	pending map[[ChannelIDLength]byte]*pendingChannel
	order   [][ChannelIDLength]byte // insertion order, oldest first

	ready [][]byte // decompressed channel payloads waiting to be read
}

func NewChannelBank(l log.Logger, channelTimeout uint64) *ChannelBank {
	return &ChannelBank{
		log:            l,
		channelTimeout: channelTimeout,
		pending:        make(map[[ChannelIDLength]byte]*pendingChannel),
	}
}

// IngestFrame buffers f, observed inside currentL1Block. Once the channel f
// belongs to is complete, its decompressed payload becomes available via
// NextChannel. A frame for a channel already pruned for timeout opens a
// fresh pending channel under the same ID.
func (c *ChannelBank) IngestFrame(f Frame, currentL1Block uint64) {
	c.prune(currentL1Block)

	pc, ok := c.pending[f.ChannelID]
	if !ok {
		pc = &pendingChannel{
			id:          f.ChannelID,
			openL1Block: currentL1Block,
			frames:      make(map[uint16][]byte),
		}
		c.pending[f.ChannelID] = pc
		c.order = append(c.order, f.ChannelID)
	}

	if _, dup := pc.frames[f.FrameNumber]; dup {
		c.log.Debug("dropping duplicate frame", "channel", fmt.Sprintf("%x", f.ChannelID), "frame", f.FrameNumber)
		return
	}
	if f.IsLast {
		if pc.sawLastFrame && pc.highestFrame != f.FrameNumber {
			c.log.Warn("channel saw a second, inconsistent last frame", "channel", fmt.Sprintf("%x", f.ChannelID))
			return
		}
		pc.sawLastFrame = true
		pc.highestFrame = f.FrameNumber
	}
	pc.frames[f.FrameNumber] = f.Data
	pc.size += len(f.Data)

	if pc.isReady() {
		payload, err := decompressChannel(pc.assemble())
		if err != nil {
			c.log.Warn("dropping channel with undecodable payload", "channel", fmt.Sprintf("%x", f.ChannelID), "err", err)
		} else {
			c.ready = append(c.ready, payload)
		}
		delete(c.pending, f.ChannelID)
	}
}

// prune drops channels whose age (currentL1Block - openL1Block) exceeds the
// configured channel timeout, oldest first.
func (c *ChannelBank) prune(currentL1Block uint64) {
	i := 0
	for ; i < len(c.order); i++ {
		id := c.order[i]
		pc, ok := c.pending[id]
		if !ok {
			continue
		}
		if currentL1Block-pc.openL1Block <= c.channelTimeout {
			break
		}
		c.log.Debug("dropping timed-out channel", "channel", fmt.Sprintf("%x", id), "opened", pc.openL1Block, "now", currentL1Block)
		delete(c.pending, id)
	}
	c.order = c.order[i:]
}

// NextChannel pops the oldest completed, decompressed channel payload.
func (c *ChannelBank) NextChannel() ([]byte, error) {
	if len(c.ready) == 0 {
		return nil, EOF
	}
	payload := c.ready[0]
	c.ready = c.ready[1:]
	return payload, nil
}

func decompressChannel(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening zlib reader: %w", err)
	}
	defer r.Close()

	limited := io.LimitReader(r, MaxSpanBatchSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("decompressing channel: %w", err)
	}
	if len(out) > MaxSpanBatchSize {
		return nil, fmt.Errorf("decompressed channel exceeds maximum size %d", MaxSpanBatchSize)
	}
	return out, nil
}
