// Package memory simulates a small byte-addressed memory with a stack that
// grows down from the top, a first-fit heap below it, optional reference
// counting, optional allocation-level bounds checking and a full snapshot
// history of every mutation.
package memory

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/memsafe/errors"
)

// Default geometry, split evenly between heap and stack.
const (
	DefaultSize = 64

	// DemoSize and DemoStackStart are the layout used by the scenarios.
	DemoSize       = 96
	DemoStackStart = 80
)

// Region names the area an allocation lives in.
type Region string

const (
	RegionStack Region = "stack"
	RegionHeap  Region = "heap"
)

// Byte is one memory cell. Pointer marks bytes written as addresses.
type Byte struct {
	Value   byte
	Pointer bool
}

// Allocation describes one live block.
type Allocation struct {
	Region   Region
	Address  uint32
	Size     uint32
	RefCount int
}

// End returns the first address past the allocation.
func (a Allocation) End() uint32 {
	return a.Address + a.Size
}

// Contains reports whether [address, address+length) lies inside a.
func (a Allocation) Contains(address, length uint32) bool {
	return address >= a.Address && uint64(address)+uint64(length) <= uint64(a.End())
}

// Config configures a Memory.
type Config struct {
	// Size is the total number of bytes. Zero means DefaultSize.
	Size uint32
	// StackStart is the lowest address the stack may grow to.
	// Zero means Size/2.
	StackStart uint32
	// GC enables reference counting on heap allocations.
	GC bool
	// BoundsChecking requires every access to sit inside one allocation.
	BoundsChecking bool
}

// Memory is the simulated memory. It is safe for concurrent use.
type Memory struct {
	bytes          []Byte
	allocs         map[uint32]*Allocation
	snapshots      []Snapshot
	stackStart     uint32
	sp             int
	index          int
	mu             sync.RWMutex
	gc             bool
	boundsChecking bool
}

// New creates a zeroed memory and records the initial snapshot.
func New(cfg Config) (*Memory, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.StackStart == 0 {
		cfg.StackStart = cfg.Size / 2
	}
	if cfg.StackStart > cfg.Size {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("stack start %d is past memory size %d", cfg.StackStart, cfg.Size))
	}

	m := &Memory{
		bytes:          make([]Byte, cfg.Size),
		allocs:         make(map[uint32]*Allocation),
		stackStart:     cfg.StackStart,
		sp:             int(cfg.Size) - 1,
		index:          -1,
		gc:             cfg.GC,
		boundsChecking: cfg.BoundsChecking,
	}
	m.snapshot("Initial memory state")
	return m, nil
}

// MustNew is New for configurations known to be valid.
func MustNew(cfg Config) *Memory {
	m, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// EnableGC switches reference counting on or off for new allocations.
func (m *Memory) EnableGC(enabled bool) {
	m.mu.Lock()
	m.gc = enabled
	m.mu.Unlock()
}

// GCEnabled reports whether reference counting is on.
func (m *Memory) GCEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gc
}

// EnableBoundsChecking switches allocation-level access checks on or off.
func (m *Memory) EnableBoundsChecking(enabled bool) {
	m.mu.Lock()
	m.boundsChecking = enabled
	m.mu.Unlock()
}

// BoundsChecking reports whether allocation-level access checks are on.
func (m *Memory) BoundsChecking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.boundsChecking
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint32(len(m.bytes))
}

// StackStart returns the lowest address available to the stack.
func (m *Memory) StackStart() uint32 {
	return m.stackStart
}

func (m *Memory) initialRefCount() int {
	if m.gc {
		return 1
	}
	return 0
}

// AllocateStack reserves size bytes below the current stack pointer.
func (m *Memory) AllocateStack(size uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "allocation size must be positive")
	}

	candidate := m.sp - int(size) + 1
	if candidate < int(m.stackStart) {
		available := m.sp - int(m.stackStart) + 1
		Logger().Warn("stack overflow",
			zap.Uint32("size", size),
			zap.Int("available", available),
		)
		return 0, errors.StackOverflow(size, uint32(available))
	}

	addr := uint32(candidate)
	m.sp = candidate - 1
	m.allocs[addr] = &Allocation{
		Region:   RegionStack,
		Address:  addr,
		Size:     size,
		RefCount: m.initialRefCount(),
	}
	m.snapshot(fmt.Sprintf("allocateStack(%d) → address %d", size, addr))
	return addr, nil
}

// FreeStack releases a stack allocation. Releasing the lowest block moves
// the stack pointer back up.
func (m *Memory) FreeStack(address uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.allocation(address, RegionStack)
	if err != nil {
		return err
	}
	if int(address) == m.sp+1 {
		m.sp = int(a.End()) - 1
	}
	delete(m.allocs, address)
	m.snapshot(fmt.Sprintf("freeStack(%d)", address))
	return nil
}

// Allocate reserves size bytes on the heap using first fit.
func (m *Memory) Allocate(size uint32) (uint32, error) {
	return m.allocateAligned(size, 1)
}

func (m *Memory) allocateAligned(size, align uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseAlloc, "allocation size must be positive")
	}

	addr, ok := m.findFree(size, align)
	if !ok {
		Logger().Warn("heap out of memory", zap.Uint32("size", size))
		return 0, errors.OutOfMemory(size)
	}

	m.allocs[addr] = &Allocation{
		Region:   RegionHeap,
		Address:  addr,
		Size:     size,
		RefCount: m.initialRefCount(),
	}
	m.snapshot(fmt.Sprintf("allocateHeap(%d) → address %d", size, addr))
	return addr, nil
}

// findFree returns the first gap in the heap that fits size bytes at the
// given alignment. Caller holds m.mu.
func (m *Memory) findFree(size, align uint32) (uint32, bool) {
	limit := uint64(m.stackStart)
	if uint64(size) > limit {
		return 0, false
	}
	if align == 0 {
		align = 1
	}

	heap := m.sortedLocked(RegionHeap)
	var cursor uint64
	for _, a := range heap {
		start := alignUp(cursor, uint64(align))
		if start+uint64(size) <= uint64(a.Address) {
			return uint32(start), true
		}
		cursor = uint64(a.End())
	}
	start := alignUp(cursor, uint64(align))
	if start+uint64(size) <= limit {
		return uint32(start), true
	}
	return 0, false
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

// Free releases a heap allocation. With reference counting on it drops one
// reference and collects every block whose count reached zero.
func (m *Memory) Free(address uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.allocation(address, RegionHeap)
	if err != nil {
		return err
	}

	if !m.gc {
		delete(m.allocs, address)
		m.snapshot(fmt.Sprintf("free(%d) - Manual free", address))
		return nil
	}

	a.RefCount--
	collected := m.sweep()
	if len(collected) > 0 {
		parts := make([]string, len(collected))
		for i, c := range collected {
			parts[i] = fmt.Sprint(c)
		}
		m.snapshot(fmt.Sprintf("free(%d) (GC collected: %s)", address, strings.Join(parts, ", ")))
	} else {
		m.snapshot(fmt.Sprintf("free(%d) (refCount: %d)", address, a.RefCount))
	}
	return nil
}

// AddRef adds a reference to a heap allocation. It reports false when
// reference counting is off or address is not a heap block.
func (m *Memory) AddRef(address uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.gc {
		return false
	}
	a, ok := m.allocs[address]
	if !ok || a.Region == RegionStack {
		return false
	}
	a.RefCount++
	m.snapshot(fmt.Sprintf("addRef(%d) → %d", address, a.RefCount))
	return true
}

// RefCount returns the reference count of the allocation at address.
func (m *Memory) RefCount(address uint32) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocs[address]
	if !ok {
		return 0, false
	}
	return a.RefCount, true
}

// sweep removes allocations without references. Caller holds m.mu.
func (m *Memory) sweep() []uint32 {
	var collected []uint32
	for addr, a := range m.allocs {
		if a.RefCount <= 0 {
			collected = append(collected, addr)
			delete(m.allocs, addr)
		}
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i] < collected[j] })
	return collected
}

// allocation returns the live block at address in region. Caller holds m.mu.
func (m *Memory) allocation(address uint32, region Region) (*Allocation, error) {
	a, ok := m.allocs[address]
	if !ok {
		return nil, errors.InvalidFree(address)
	}
	if a.Region != region {
		return nil, errors.RegionMismatch(address, string(region), string(a.Region))
	}
	return a, nil
}

// Allocation returns the live block starting at address.
func (m *Memory) Allocation(address uint32) (Allocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocs[address]
	if !ok {
		return Allocation{}, false
	}
	return *a, true
}

// Allocations returns the live blocks sorted by address.
func (m *Memory) Allocations() []Allocation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Allocation
	for _, region := range []Region{RegionHeap, RegionStack} {
		out = append(out, m.sortedLocked(region)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (m *Memory) sortedLocked(region Region) []Allocation {
	var out []Allocation
	for _, a := range m.allocs {
		if a.Region == region {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// validate checks [address, address+length) against the memory size and,
// with bounds checking on, against the live allocations. Caller holds m.mu.
func (m *Memory) validate(address, length uint32) error {
	if uint64(address)+uint64(length) > uint64(len(m.bytes)) {
		return errors.RangeOutOfBounds(errors.PhaseBounds, "memory",
			uint64(address), uint64(length), uint64(len(m.bytes)))
	}
	if !m.boundsChecking {
		return nil
	}
	for _, a := range m.allocs {
		if a.Contains(address, length) {
			return nil
		}
	}
	return errors.BoundsViolation(address, length)
}

// ReadCell returns the cell at address.
func (m *Memory) ReadCell(address uint32) (Byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.validate(address, 1); err != nil {
		return Byte{}, err
	}
	return m.bytes[address], nil
}

// WriteCell stores a plain byte at address.
func (m *Memory) WriteCell(address uint32, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validate(address, 1); err != nil {
		return err
	}
	m.bytes[address] = Byte{Value: v}
	m.snapshot(fmt.Sprintf("writeByte(%d, %d)", address, v))
	return nil
}

// WritePointer stores a one-byte address at address, marked as a pointer.
func (m *Memory) WritePointer(address uint32, target byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validate(address, 1); err != nil {
		return err
	}
	m.bytes[address] = Byte{Value: target, Pointer: true}
	m.snapshot(fmt.Sprintf("writePointer(%d, %d)", address, target))
	return nil
}

// WriteAddress stores a 32-bit little-endian address, marked as a pointer.
func (m *Memory) WriteAddress(address, target uint32) error {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], target)
	cells := make([]Byte, 4)
	for i, b := range raw {
		cells[i] = Byte{Value: b, Pointer: true}
	}
	return m.writeCells(address, cells, fmt.Sprintf("writeAddress(%d, %d)", address, target))
}

// WriteBytes stores data at address as one snapshot. An empty write is a no-op.
// An empty message is replaced by a generated one.
func (m *Memory) WriteBytes(address uint32, data []byte, message string) error {
	cells := make([]Byte, len(data))
	for i, b := range data {
		cells[i] = Byte{Value: b}
	}
	if message == "" {
		message = fmt.Sprintf("writeBytes(%d, len=%d)", address, len(data))
	}
	return m.writeCells(address, cells, message)
}

func (m *Memory) writeCells(address uint32, cells []Byte, message string) error {
	if len(cells) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validate(address, uint32(len(cells))); err != nil {
		return err
	}
	copy(m.bytes[address:], cells)
	m.snapshot(message)
	return nil
}

// ReadInt32 decodes a little-endian int32 at address.
func (m *Memory) ReadInt32(address uint32) (int32, error) {
	v, err := m.ReadU32(address)
	return int32(v), err
}

// WriteInt32 encodes v little-endian at address.
func (m *Memory) WriteInt32(address uint32, v int32) error {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], uint32(v))
	return m.WriteBytes(address, raw[:], fmt.Sprintf("writeInt32(%d, %d)", address, v))
}

// ReadString decodes a NUL-padded fixed string of length bytes.
func (m *Memory) ReadString(address, length uint32) (string, error) {
	raw, err := m.Read(address, length)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// WriteString stores s as a fixed string of length bytes, truncated or
// NUL padded to fit.
func (m *Memory) WriteString(address uint32, s string, length uint32) error {
	if uint32(len(s)) > length {
		s = s[:length]
	}
	raw := make([]byte, length)
	copy(raw, s)
	return m.WriteBytes(address, raw, fmt.Sprintf("writeString(%d, %q, %d)", address, s, length))
}

// Note records a snapshot without changing memory.
func (m *Memory) Note(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot(message)
}

// Clear zeroes every byte and releases every allocation.
func (m *Memory) Clear(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if message == "" {
		message = "clearMemory()"
	}
	m.bytes = make([]Byte, len(m.bytes))
	m.allocs = make(map[uint32]*Allocation)
	m.sp = len(m.bytes) - 1
	m.snapshot(message)
}

// Reset clears memory and discards the history.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bytes = make([]Byte, len(m.bytes))
	m.allocs = make(map[uint32]*Allocation)
	m.sp = len(m.bytes) - 1
	m.snapshots = nil
	m.index = -1
	m.snapshot("Memory reset")
}

// Bytes returns a copy of every cell.
func (m *Memory) Bytes() []Byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Byte, len(m.bytes))
	copy(out, m.bytes)
	return out
}

// Dump returns the memory as space separated hex bytes.
func (m *Memory) Dump() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	for i, c := range m.bytes {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c.Value)
	}
	return b.String()
}

// Stats summarizes stack and heap usage.
type Stats struct {
	Size           uint32
	StackSize      uint32
	UsedStack      uint32
	AvailableStack uint32
	HeapSize       uint32
	UsedHeap       uint32
	AvailableHeap  uint32
	StackPointer   int
}

// Stats returns the current usage.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := uint32(len(m.bytes))
	var usedHeap uint32
	for _, a := range m.allocs {
		if a.Region == RegionHeap {
			usedHeap += a.Size
		}
	}
	return Stats{
		Size:           size,
		StackSize:      size - m.stackStart,
		UsedStack:      uint32(int(size) - 1 - m.sp),
		AvailableStack: uint32(m.sp - int(m.stackStart) + 1),
		HeapSize:       m.stackStart,
		UsedHeap:       usedHeap,
		AvailableHeap:  m.stackStart - usedHeap,
		StackPointer:   m.sp,
	}
}
