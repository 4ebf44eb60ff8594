package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	handle, err := b.Create(1, "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
}

func TestLocalBackend_StaleHandleAfterReuse(t *testing.T) {
	b := NewLocalBackend()

	old, _ := b.Create(1, "freed user")
	if _, ok := b.Drop(old); !ok {
		t.Fatal("Drop failed")
	}

	// The next value takes the same slot with a new generation.
	fresh, _ := b.Create(1, "new occupant")
	if fresh.Slot() != old.Slot() {
		t.Fatalf("expected slot reuse: old=%d fresh=%d", old.Slot(), fresh.Slot())
	}
	if fresh.Generation() == old.Generation() {
		t.Fatal("reused slot must carry a new generation")
	}

	if _, ok := b.Get(old); ok {
		t.Fatal("stale handle must not resolve to the new occupant")
	}
	if v, ok := b.Get(fresh); !ok || v != "new occupant" {
		t.Fatalf("fresh handle: got %v, %v", v, ok)
	}
}

func TestLocalBackend_DoubleDrop(t *testing.T) {
	b := NewLocalBackend()

	h, _ := b.Create(1, "x")
	if _, ok := b.Drop(h); !ok {
		t.Fatal("first Drop failed")
	}
	if _, ok := b.Drop(h); ok {
		t.Fatal("second Drop must fail")
	}
}

func TestLocalBackend_BorrowMut(t *testing.T) {
	b := NewLocalBackend()

	h, _ := b.Create(1, "count")
	before, _ := b.Version(h)

	if !b.BorrowMut(h) {
		t.Fatal("BorrowMut failed")
	}
	if b.BorrowMut(h) {
		t.Fatal("second BorrowMut must fail while the first is outstanding")
	}
	if !b.MutBorrowed(h) {
		t.Fatal("MutBorrowed should report the exclusive borrow")
	}

	after, _ := b.Version(h)
	if after == before {
		t.Fatal("BorrowMut must bump the version")
	}

	if _, ok := b.Drop(h); ok {
		t.Fatal("Drop should fail while mutably borrowed")
	}

	if !b.ReturnMut(h) {
		t.Fatal("ReturnMut failed")
	}
	if b.ReturnMut(h) {
		t.Fatal("ReturnMut without a borrow must fail")
	}

	if _, ok := b.Drop(h); !ok {
		t.Fatal("Drop should succeed after returning the borrow")
	}
}

func TestLocalBackend_Touch(t *testing.T) {
	b := NewLocalBackend()

	h, _ := b.Create(1, "text")
	v1, ok := b.Touch(h)
	if !ok || v1 != 1 {
		t.Fatalf("Touch: got %d, %v", v1, ok)
	}
	v2, _ := b.Touch(h)
	if v2 != 2 {
		t.Fatalf("second Touch: got %d, want 2", v2)
	}

	b.Drop(h)
	if _, ok := b.Touch(h); ok {
		t.Fatal("Touch on dropped handle must fail")
	}
}

func TestLocalBackend_Reissue(t *testing.T) {
	b := NewLocalBackend()

	h, _ := b.Create(7, "data")
	moved, value, typeID, ok := b.reissue(h)
	if !ok {
		t.Fatal("reissue failed")
	}
	if moved == h {
		t.Fatal("moved handle must differ from the original")
	}
	if value != "data" || typeID != 7 {
		t.Fatalf("reissue returned %v/%d", value, typeID)
	}
	if _, ok := b.Get(h); ok {
		t.Fatal("original handle must be dead after reissue")
	}
	if v, ok := b.Get(moved); !ok || v != "data" {
		t.Fatalf("moved handle: got %v, %v", v, ok)
	}
	if b.Len() != 1 {
		t.Fatalf("Len after move = %d, want 1", b.Len())
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	b.Create(1, "b")

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := b.Create(1, "test")
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(1, id)
			b.BorrowMut(h)
			b.Touch(h)
			b.ReturnMut(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Len after concurrent drops = %d", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(1, "a")
	h2, _ := b.Create(1, "b")
	b.Create(1, "c")

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	b.Create(2, "b")
	b.Create(1, "c")

	count := 0
	b.Each(func(h Handle, typeID uint32, value any) bool {
		if _, ok := b.entries[h.index()].value.(string); !ok {
			t.Errorf("unexpected value %v", value)
		}
		count++
		return true
	})

	if count != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", count)
	}

	count = 0
	b.Each(func(h Handle, typeID uint32, value any) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, ok := b.Version(0); ok {
		t.Fatal("Handle 0 should be invalid for Version")
	}
	if b.BorrowMut(0) {
		t.Fatal("Handle 0 should fail BorrowMut")
	}
	if b.ReturnMut(0) {
		t.Fatal("Handle 0 should fail ReturnMut")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Handle 0 should fail Drop")
	}

	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}
