package bounds

import (
	"github.com/wippyai/memsafe"
	"github.com/wippyai/memsafe/errors"
)

// Region is a fixed-capacity window [base, base+size) over a Memory,
// the checked replacement for a char[N] field inside a struct.
type Region struct {
	mem  memsafe.Memory
	name string
	base uint32
	size uint32
}

// NewRegion returns a window of size bytes at base in mem.
func NewRegion(mem memsafe.Memory, name string, base, size uint32) *Region {
	return &Region{mem: mem, name: name, base: base, size: size}
}

// Name returns the region name used in faults.
func (r *Region) Name() string { return r.name }

// Base returns the first address of the region.
func (r *Region) Base() uint32 { return r.base }

// Size returns the region capacity in bytes.
func (r *Region) Size() uint32 { return r.size }

func (r *Region) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(r.size) {
		return errors.RangeOutOfBounds(errors.PhaseBounds, r.name, uint64(offset), uint64(length), uint64(r.size))
	}
	return nil
}

// Get returns the byte at offset within the region.
func (r *Region) Get(offset uint32) (byte, error) {
	if offset >= r.size {
		return 0, errors.OutOfBounds(errors.PhaseBounds, []string{r.name}, int(offset), int(r.size))
	}
	return r.mem.ReadU8(r.base + offset)
}

// Set stores v at offset within the region.
func (r *Region) Set(offset uint32, v byte) error {
	if offset >= r.size {
		return errors.OutOfBounds(errors.PhaseBounds, []string{r.name}, int(offset), int(r.size))
	}
	return r.mem.WriteU8(r.base+offset, v)
}

// Write stores data at the start of the region. Data that does not fit is
// rejected before any byte is written.
func (r *Region) Write(data []byte) error {
	if err := r.check(0, uint32(len(data))); err != nil {
		return err
	}
	return r.mem.Write(r.base, data)
}

// WriteBounded stores as much of data as fits and returns the count.
func (r *Region) WriteBounded(data []byte) (int, error) {
	n := len(data)
	if uint64(n) > uint64(r.size) {
		n = int(r.size)
	}
	if err := r.mem.Write(r.base, data[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// Read returns a copy of the whole region.
func (r *Region) Read() ([]byte, error) {
	return r.mem.Read(r.base, r.size)
}

// Clear zeroes the region.
func (r *Region) Clear() error {
	return r.mem.Write(r.base, make([]byte, r.size))
}
