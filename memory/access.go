package memory

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/wippyai/memsafe"
)

var (
	_ memsafe.Memory      = (*Memory)(nil)
	_ memsafe.MemorySizer = (*Memory)(nil)
)

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.validate(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = m.bytes[offset+uint32(i)].Value
	}
	return out, nil
}

// Write stores data at offset as one snapshot.
func (m *Memory) Write(offset uint32, data []byte) error {
	return m.WriteBytes(offset, data, "")
}

// ReadU8 reads a byte.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 writes a byte.
func (m *Memory) WriteU8(offset uint32, value uint8) error {
	return m.WriteCell(offset, value)
}

// WriteU16 writes a little-endian uint16.
func (m *Memory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, binary.LittleEndian.AppendUint16(nil, value))
}

// WriteU32 writes a little-endian uint32.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	return m.Write(offset, binary.LittleEndian.AppendUint32(nil, value))
}

// WriteU64 writes a little-endian uint64.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	return m.Write(offset, binary.LittleEndian.AppendUint64(nil, value))
}

// HeapAllocator exposes the heap through the memsafe.Allocator interface.
type HeapAllocator struct {
	mem *Memory
}

var _ memsafe.Allocator = (*HeapAllocator)(nil)

// Allocator returns an allocator over m's heap.
func (m *Memory) Allocator() *HeapAllocator {
	return &HeapAllocator{mem: m}
}

// Alloc reserves size bytes at the given alignment.
func (h *HeapAllocator) Alloc(size, align uint32) (uint32, error) {
	return h.mem.allocateAligned(size, align)
}

// Free releases the block at ptr. Failures are logged.
func (h *HeapAllocator) Free(ptr, size, align uint32) {
	if err := h.mem.Free(ptr); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err),
		)
	}
}
