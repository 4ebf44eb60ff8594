// Package bounds provides fixed-capacity storage whose every access is
// checked against its capacity. A violation is a structured fault; nothing
// is written and nothing wraps around.
package bounds

import (
	"github.com/wippyai/memsafe/errors"
)

// FixedBuffer is a fixed-capacity byte sequence.
type FixedBuffer struct {
	name string
	data []byte
}

// NewFixedBuffer returns a zeroed buffer of capacity n.
func NewFixedBuffer(name string, n int) *FixedBuffer {
	if n < 0 {
		n = 0
	}
	return &FixedBuffer{name: name, data: make([]byte, n)}
}

// Cap returns the buffer capacity.
func (b *FixedBuffer) Cap() int {
	return len(b.data)
}

// Get returns the byte at index.
func (b *FixedBuffer) Get(index int) (byte, error) {
	if index < 0 || index >= len(b.data) {
		return 0, errors.OutOfBounds(errors.PhaseBounds, []string{b.name}, index, len(b.data))
	}
	return b.data[index], nil
}

// Set stores v at index. Only that slot changes.
func (b *FixedBuffer) Set(index int, v byte) error {
	if index < 0 || index >= len(b.data) {
		return errors.OutOfBounds(errors.PhaseBounds, []string{b.name}, index, len(b.data))
	}
	b.data[index] = v
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *FixedBuffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}
