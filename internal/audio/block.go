package audio

import (
	"context"
	"sync/atomic"
)

// BlockSize is the number of frames in one render quantum.
const BlockSize = 128

// Block holds one quantum of deinterleaved samples. Data has one slice of
// BlockSize samples per channel; only the first Frames entries are valid.
type Block struct {
	Data   [][]float32
	Frames int
}

// Channels returns Data trimmed to the valid frames.
func (b *Block) Channels(dst [][]float32) [][]float32 {
	dst = dst[:0]
	for _, ch := range b.Data {
		dst = append(dst, ch[:b.Frames])
	}
	return dst
}

// BlockQueue cycles a fixed pool of blocks between an input stream and the
// audio runtime. All blocks are allocated up front.
type BlockQueue struct {
	channels int
	free     chan *Block
	filled   chan *Block

	submitted atomic.Uint64
	overruns  atomic.Uint64
}

// NewBlockQueue allocates n blocks of the given channel count.
func NewBlockQueue(channels, n int) *BlockQueue {
	if n < 2 {
		n = 2
	}
	q := &BlockQueue{
		channels: channels,
		free:     make(chan *Block, n),
		filled:   make(chan *Block, n),
	}
	for i := 0; i < n; i++ {
		b := &Block{Data: make([][]float32, channels)}
		for ch := range b.Data {
			b.Data[ch] = make([]float32, BlockSize)
		}
		q.free <- b
	}
	return q
}

// ChannelCount returns the number of channels in every block.
func (q *BlockQueue) ChannelCount() int { return q.channels }

// TryAcquire returns a free block without waiting. A miss is counted as an
// overrun.
func (q *BlockQueue) TryAcquire() (*Block, bool) {
	select {
	case b := <-q.free:
		b.Frames = 0
		return b, true
	default:
		q.overruns.Add(1)
		return nil, false
	}
}

// Acquire waits for a free block.
func (q *BlockQueue) Acquire(ctx context.Context) (*Block, error) {
	select {
	case b := <-q.free:
		b.Frames = 0
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit queues a filled block. It never blocks: filled has room for every
// block in the pool.
func (q *BlockQueue) Submit(b *Block) {
	q.filled <- b
	q.submitted.Add(1)
}

// Submitted returns the number of blocks submitted so far. Every counted
// block is already receivable from Filled.
func (q *BlockQueue) Submitted() uint64 { return q.submitted.Load() }

// Filled is the receive side consumed by the audio runtime.
func (q *BlockQueue) Filled() <-chan *Block { return q.filled }

// Release returns a consumed block to the pool.
func (q *BlockQueue) Release(b *Block) {
	select {
	case q.free <- b:
	default:
	}
}

// Overruns returns the number of blocks lost because the pool was empty.
func (q *BlockQueue) Overruns() uint64 { return q.overruns.Load() }
