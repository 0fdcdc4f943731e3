package batch

import (
	"context"
	"fmt"
)

// EmitFunc receives one batch. The slice is owned by the callee.
type EmitFunc[T any] func(ctx context.Context, items []T) error

// Batcher accumulates items until a size threshold is reached.
type Batcher[T any] struct {
	size    int
	buf     []T
	emit    EmitFunc[T]
	emitted int
}

// New creates a Batcher emitting batches of size items.
// Panics if size < 1 or emit is nil; both are programmer errors.
func New[T any](size int, emit EmitFunc[T]) *Batcher[T] {
	if size < 1 {
		panic(fmt.Sprintf("batch size must be positive, got %d", size))
	}
	if emit == nil {
		panic("emit cannot be nil")
	}
	return &Batcher[T]{
		size: size,
		buf:  make([]T, 0, size),
		emit: emit,
	}
}

// Add buffers item and emits the batch when the threshold is reached.
// The emitted batch is released whether or not emit fails.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.buf = append(b.buf, item)
	if len(b.buf) < b.size {
		return nil
	}
	return b.release(ctx)
}

// Flush emits the buffered partial batch, if any.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.release(ctx)
}

// Pending returns the number of buffered items.
func (b *Batcher[T]) Pending() int {
	return len(b.buf)
}

// Emitted returns the number of batches handed to emit so far.
func (b *Batcher[T]) Emitted() int {
	return b.emitted
}

func (b *Batcher[T]) release(ctx context.Context) error {
	items := b.buf
	b.buf = make([]T, 0, b.size)
	b.emitted++
	return b.emit(ctx, items)
}
