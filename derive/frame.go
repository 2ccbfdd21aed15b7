package derive

import (
	"encoding/binary"
	"fmt"
)

// Frame is a chunk of a channel's compressed payload as it appears inside a
// batcher transaction: a 16-byte channel id, the frame's index within its
// channel, the frame's data, and whether it is the channel's last frame.
// Wire layout (magi batcher_transactions.rs Frame::from_data):
//
//	channel_id   [16]byte
//	frame_number uint16 (big-endian)
//	frame_len    uint32 (big-endian)
//	frame_data   [frame_len]byte
//	is_last      byte (0 or 1)
type Frame struct {
	ChannelID   [ChannelIDLength]byte
	FrameNumber uint16
	Data        []byte
	IsLast      bool
}

// frameHeaderLen is the fixed-size portion preceding a frame's data:
// channel id + frame number + frame data length.
const frameHeaderLen = ChannelIDLength + 2 + 4

// ParseFrames splits a single batcher transaction's payload (calldata minus
// the leading derivation-version byte, or a decoded blob) into its
// constituent frames. A batcher transaction may carry more than one frame.
func ParseFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	for len(data) > 0 {
		f, rest, err := parseFrame(data)
		if err != nil {
			return nil, fmt.Errorf("parsing frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
		data = rest
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("batcher transaction payload contains no frames")
	}
	return frames, nil
}

func parseFrame(data []byte) (Frame, []byte, error) {
	if len(data) < frameHeaderLen {
		return Frame{}, nil, fmt.Errorf("payload too short for frame header: %d bytes", len(data))
	}
	var f Frame
	copy(f.ChannelID[:], data[:ChannelIDLength])
	off := ChannelIDLength
	f.FrameNumber = binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	frameLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if frameLen > MaxFrameLen {
		return Frame{}, nil, fmt.Errorf("frame data length %d exceeds maximum %d", frameLen, MaxFrameLen)
	}
	end := off + int(frameLen)
	if end+1 > len(data) {
		return Frame{}, nil, fmt.Errorf("payload too short for frame data: need %d have %d", end+1, len(data))
	}
	f.Data = append([]byte(nil), data[off:end]...)
	isLastByte := data[end]
	if isLastByte > 1 {
		return Frame{}, nil, fmt.Errorf("invalid is_last byte: %d", isLastByte)
	}
	f.IsLast = isLastByte == 1
	return f, data[end+1:], nil
}

// BatcherTransactions is stage 1 of the pipeline: it parses batcher
// transaction payloads into frames and buffers them for stage 2 (the
// channel bank). Selecting the batcher's transactions to the batch inbox
// and stripping the leading derivation-version byte happen before Push,
// in the caller.
//
// Post-Ecotone, frame data additionally arrives via EIP-4844 blobs attached
// to the same transactions; the caller is responsible for resolving blobs
// (see l1.ExtractBatcherTransactions) and feeding the decoded bytes through
// ParseFrames identically to calldata-carried frames.
type BatcherTransactions struct {
	frameQueue []Frame
}

// NewBatcherTransactions constructs an empty stage-1 buffer.
func NewBatcherTransactions() *BatcherTransactions {
	return &BatcherTransactions{}
}

// Push decodes one batcher transaction's payload (already stripped of the
// version byte) and buffers its frames in order.
func (b *BatcherTransactions) Push(payload []byte) error {
	frames, err := ParseFrames(payload)
	if err != nil {
		return err
	}
	b.frameQueue = append(b.frameQueue, frames...)
	return nil
}

// NextFrame pops the oldest buffered frame, or returns EOF if none remain.
func (b *BatcherTransactions) NextFrame() (Frame, error) {
	if len(b.frameQueue) == 0 {
		return Frame{}, EOF
	}
	f := b.frameQueue[0]
	b.frameQueue = b.frameQueue[1:]
	return f, nil
}
