package pipeline

import (
	"errors"
	"fmt"
)

// DefaultBatchSize is the number of BVP samples per network message.
const DefaultBatchSize = 16

var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

// BatchBuffer accumulates samples and hands out one full batch every
// capacity pushes. Partial batches are never emitted.
type BatchBuffer struct {
	values []float64
	cursor int // always in [0, len(values))
}

// NewBatchBuffer returns a buffer holding size samples per batch.
func NewBatchBuffer(size int) (*BatchBuffer, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	return &BatchBuffer{values: make([]float64, size)}, nil
}

// Push appends value. When the buffer fills it returns the batch in
// arrival order and starts a new accumulation. The returned slice is owned
// by the caller.
func (b *BatchBuffer) Push(value float64) ([]float64, bool) {
	b.values[b.cursor] = value
	b.cursor++
	if b.cursor < len(b.values) {
		return nil, false
	}
	b.cursor = 0
	batch := make([]float64, len(b.values))
	copy(batch, b.values)
	return batch, true
}

// Discard drops a partially filled batch.
func (b *BatchBuffer) Discard() int {
	n := b.cursor
	b.cursor = 0
	return n
}

// Len is the number of samples waiting for the next batch.
func (b *BatchBuffer) Len() int { return b.cursor }

func (b *BatchBuffer) Cap() int { return len(b.values) }
