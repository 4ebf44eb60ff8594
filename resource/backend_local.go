package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("resource backend closed")

// LocalBackend is an in-memory backend with generation-checked handles and
// exclusive borrow tracking. Implements both Backend and BorrowBackend.
type LocalBackend struct {
	entries  []entry
	freeList []int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	typeID      uint32
	gen         uint32
	version     uint32
	mutBorrowed bool
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]int, 0, 16),
	}
}

// lookup returns the live entry for handle. Caller holds b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	idx := handle.index()
	if idx < 0 || idx >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid || e.gen != handle.Generation() {
		return nil
	}
	return e
}

// Create stores a value and returns a handle.
// A reused slot keeps the generation it was bumped to on release, so handles
// issued for the previous occupant never resolve again.
func (b *LocalBackend) Create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		idx := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[idx]
		e.value = value
		e.typeID = typeID
		e.version = 0
		e.mutBorrowed = false
		e.valid = true
		return makeHandle(idx, e.gen), nil
	}

	b.entries = append(b.entries, entry{
		typeID: typeID,
		value:  value,
		gen:    1,
		valid:  true,
	})
	return makeHandle(len(b.entries)-1, 1), nil
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Drop removes a value and returns (value, true) if the destructor should run.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.mutBorrowed {
		return nil, false
	}

	value := e.value
	b.release(handle.index())
	return value, true
}

// release invalidates slot idx and bumps its generation. Caller holds b.mu.
func (b *LocalBackend) release(idx int) {
	e := &b.entries[idx]
	e.valid = false
	e.value = nil
	e.version = 0
	e.mutBorrowed = false
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	b.freeList = append(b.freeList, idx)
}

// Close releases all values.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return nil
}

// Version returns the mutation counter of a live handle.
func (b *LocalBackend) Version(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.version, true
}

// Touch records a mutation and returns the new version.
func (b *LocalBackend) Touch(handle Handle) (uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	e.version++
	return e.version, true
}

// BorrowMut marks the handle exclusively borrowed.
// Shared views taken before this call observe a version change and go stale.
func (b *LocalBackend) BorrowMut(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.mutBorrowed {
		return false
	}
	e.mutBorrowed = true
	e.version++
	return true
}

// ReturnMut clears the exclusive borrow.
func (b *LocalBackend) ReturnMut(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || !e.mutBorrowed {
		return false
	}
	e.mutBorrowed = false
	return true
}

// MutBorrowed reports whether the handle is exclusively borrowed.
func (b *LocalBackend) MutBorrowed(handle Handle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	return e != nil && e.mutBorrowed
}

// reissue moves the value at handle into a fresh slot. Caller must not hold b.mu.
func (b *LocalBackend) reissue(handle Handle) (Handle, any, uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, nil, 0, false
	}

	e := b.lookup(handle)
	if e == nil || e.mutBorrowed {
		return 0, nil, 0, false
	}

	value, typeID := e.value, e.typeID
	b.release(handle.index())

	// Take a slot other than the one just released so the move is visible
	// as a different handle even before the old generation is reused.
	var idx int
	if n := len(b.freeList); n > 1 {
		idx = b.freeList[n-2]
		b.freeList = append(b.freeList[:n-2], b.freeList[n-1])
	} else {
		b.entries = append(b.entries, entry{gen: 1})
		idx = len(b.entries) - 1
	}

	ne := &b.entries[idx]
	ne.value = value
	ne.typeID = typeID
	ne.version = 0
	ne.mutBorrowed = false
	ne.valid = true
	return makeHandle(idx, ne.gen), value, typeID, true
}

// TypeID returns the type ID for a handle.
func (b *LocalBackend) TypeID(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of live values.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live values.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(i, e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}
