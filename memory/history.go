package memory

import (
	"fmt"
	"time"

	"github.com/wippyai/memsafe/errors"
)

// Snapshot is the full memory state after one mutation.
type Snapshot struct {
	Time         time.Time
	Message      string
	Bytes        []Byte
	Allocations  []Allocation
	StackPointer int
}

// Diff is one byte that differs between two snapshots.
type Diff struct {
	Address uint32
	Old     byte
	New     byte
}

// snapshot appends the current state to the history, discarding any
// snapshots after the current one. Caller holds m.mu.
func (m *Memory) snapshot(message string) {
	if m.index < len(m.snapshots)-1 {
		m.snapshots = m.snapshots[:m.index+1]
	}

	bytes := make([]Byte, len(m.bytes))
	copy(bytes, m.bytes)

	allocs := make([]Allocation, 0, len(m.allocs))
	for _, region := range []Region{RegionHeap, RegionStack} {
		allocs = append(allocs, m.sortedLocked(region)...)
	}

	m.snapshots = append(m.snapshots, Snapshot{
		Time:         time.Now(),
		Message:      message,
		Bytes:        bytes,
		Allocations:  allocs,
		StackPointer: m.sp,
	})
	m.index++
}

// GoTo restores the state recorded in snapshot index.
func (m *Memory) GoTo(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goTo(index)
}

func (m *Memory) goTo(index int) error {
	if index < 0 || index >= len(m.snapshots) {
		return errors.New(errors.PhaseHistory, errors.KindOutOfBounds).
			Subject("snapshot").
			Value(index).
			Detail("snapshot %d out of bounds (count %d)", index, len(m.snapshots)).
			Build()
	}

	s := m.snapshots[index]
	m.bytes = make([]Byte, len(s.Bytes))
	copy(m.bytes, s.Bytes)
	m.sp = s.StackPointer
	m.index = index

	m.allocs = make(map[uint32]*Allocation, len(s.Allocations))
	for _, a := range s.Allocations {
		a := a
		m.allocs[a.Address] = &a
	}
	return nil
}

// Previous steps one snapshot back, staying on the first.
func (m *Memory) Previous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.goTo(max(0, m.index-1))
}

// Next steps one snapshot forward, staying on the last.
func (m *Memory) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.goTo(min(len(m.snapshots)-1, m.index+1))
}

// SnapshotCount returns the number of recorded snapshots.
func (m *Memory) SnapshotCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// Current returns the index of the snapshot the memory reflects.
func (m *Memory) Current() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}

// SnapshotMessage returns the message of snapshot index, or "".
func (m *Memory) SnapshotMessage(index int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.snapshots) {
		return ""
	}
	return m.snapshots[index].Message
}

// SnapshotAllocations returns a copy of the allocations in snapshot index.
func (m *Memory) SnapshotAllocations(index int) []Allocation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.snapshots) {
		return nil
	}
	out := make([]Allocation, len(m.snapshots[index].Allocations))
	copy(out, m.snapshots[index].Allocations)
	return out
}

// Snapshot returns a copy of snapshot index.
func (m *Memory) Snapshot(index int) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.snapshots) {
		return Snapshot{}, false
	}
	s := m.snapshots[index]
	s.Bytes = append([]Byte(nil), s.Bytes...)
	s.Allocations = append([]Allocation(nil), s.Allocations...)
	return s, true
}

// Mask returns, per address, whether the current snapshot has it allocated.
func (m *Memory) Mask() []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mask := make([]bool, len(m.bytes))
	if m.index < 0 {
		return mask
	}
	for _, a := range m.snapshots[m.index].Allocations {
		for i := a.Address; i < a.End() && int(i) < len(mask); i++ {
			mask[i] = true
		}
	}
	return mask
}

// Diff returns the bytes that differ between snapshots a and b.
func (m *Memory) Diff(a, b int) ([]Diff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a < 0 || a >= len(m.snapshots) || b < 0 || b >= len(m.snapshots) {
		return nil, errors.InvalidInput(errors.PhaseHistory,
			fmt.Sprintf("invalid snapshot indices: %d, %d", a, b))
	}

	ba, bb := m.snapshots[a].Bytes, m.snapshots[b].Bytes
	n := min(len(ba), len(bb))

	var diffs []Diff
	for i := 0; i < n; i++ {
		if ba[i].Value != bb[i].Value {
			diffs = append(diffs, Diff{Address: uint32(i), Old: ba[i].Value, New: bb[i].Value})
		}
	}
	return diffs, nil
}
