// Package batch accumulates movement codes until a full batch can be sent.
package batch

import (
	"errors"

	"github.com/cs3238-tsuzu/movesync-online/internal/message"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

const Capacity = message.BatchSize

var ErrFull = errors.New("batch is full")

type Buffer struct {
	codes [Capacity]movement.Code
	n     int
}

// Push appends c. A full buffer must be drained first.
func (b *Buffer) Push(c movement.Code) error {
	if b.n == Capacity {
		return ErrFull
	}
	b.codes[b.n] = c
	b.n++

	return nil
}

func (b *Buffer) Full() bool { return b.n == Capacity }

func (b *Buffer) Len() int { return b.n }

// Drain returns the buffered codes in push order and empties the buffer.
func (b *Buffer) Drain() []movement.Code {
	out := make([]movement.Code, b.n)
	copy(out, b.codes[:b.n])
	b.n = 0

	return out
}

// Pending returns a copy of the buffered codes without draining.
func (b *Buffer) Pending() []movement.Code {
	out := make([]movement.Code, b.n)
	copy(out, b.codes[:b.n])

	return out
}
