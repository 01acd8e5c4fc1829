package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roman-kulish/spectrum-scope/internal/spectrum"
)

// DefaultChannelCapacity is the number of blocks the hand-off channel holds.
// The sampler never waits for the analyzer, so a small depth keeps latency low.
const DefaultChannelCapacity = 2

// ErrChannelClosed is returned by Receive once the channel is closed and drained.
var ErrChannelClosed = errors.New("block channel closed")

// BlockChannel is a bounded single-producer single-consumer hand-off of
// sample blocks. Offering never blocks: when the channel is full the offered
// block is dropped and the buffered ones are kept.
type BlockChannel struct {
	blocks  chan spectrum.Block
	dropped atomic.Uint64
	closed  atomic.Bool
}

// NewBlockChannel creates a channel holding at most capacity blocks. A
// non-positive capacity selects DefaultChannelCapacity.
func NewBlockChannel(capacity int) *BlockChannel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &BlockChannel{blocks: make(chan spectrum.Block, capacity)}
}

// TryOffer enqueues a copy of b. It reports false, and counts a drop, when the
// channel is full or closed.
func (c *BlockChannel) TryOffer(b spectrum.Block) bool {
	if c.closed.Load() {
		c.dropped.Add(1)
		return false
	}

	select {
	case c.blocks <- b:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Receive waits for the oldest buffered block. It returns ctx.Err() when the
// context is done first and ErrChannelClosed after Close once the remaining
// blocks have been received.
func (c *BlockChannel) Receive(ctx context.Context) (spectrum.Block, error) {
	select {
	case b, ok := <-c.blocks:
		if !ok {
			return spectrum.Block{}, ErrChannelClosed
		}
		return b, nil
	case <-ctx.Done():
		return spectrum.Block{}, ctx.Err()
	}
}

// Close marks the end of the stream. Only the producer may call it, and only
// once it has stopped offering.
func (c *BlockChannel) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.blocks)
	}
}

func (c *BlockChannel) Len() int { return len(c.blocks) }

func (c *BlockChannel) Cap() int { return cap(c.blocks) }

// Dropped returns the number of blocks rejected by TryOffer.
func (c *BlockChannel) Dropped() uint64 { return c.dropped.Load() }
