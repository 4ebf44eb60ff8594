package linear

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/memsafe/bounds"
	"github.com/wippyai/memsafe/errors"
)

func newMemory(t *testing.T, cfg Config) *Memory {
	t.Helper()
	ctx := context.Background()
	m, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close(ctx) })
	return m
}

func TestEncodeModule(t *testing.T) {
	got := encodeModule(1, 0)
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("module mismatch (-want +got):\n%s", diff)
	}

	withMax := encodeModule(1, 2)
	if withMax[8] != sectionMemory || withMax[11] != limitsHasMax || withMax[13] != 2 {
		t.Fatalf("memory section with max = % x", withMax[8:14])
	}
}

func TestWriteLEB128u(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{65536, []byte{0x80, 0x80, 0x04}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		writeLEB128u(&buf, tt.v)
		if diff := cmp.Diff(tt.want, buf.Bytes()); diff != "" {
			t.Errorf("writeLEB128u(%d) mismatch:\n%s", tt.v, diff)
		}
	}
}

func TestMemory_InBounds(t *testing.T) {
	m := newMemory(t, Config{})

	if m.Size() != PageSize || m.Pages() != 1 {
		t.Fatalf("Size = %d, Pages = %d", m.Size(), m.Pages())
	}

	if err := m.Write(100, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(100, 5)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Read = %q, %v", got, err)
	}

	if err := m.WriteU8(0, 0xAB); err != nil {
		t.Fatalf("WriteU8: %v", err)
	}
	if err := m.WriteU16(2, 0xBEEF); err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	if err := m.WriteU32(4, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	if err := m.WriteU64(8, 0x0102030405060708); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}

	if v, _ := m.ReadU8(0); v != 0xAB {
		t.Errorf("ReadU8 = %#x", v)
	}
	if v, _ := m.ReadU16(2); v != 0xBEEF {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := m.ReadU32(4); v != 0xDEADBEEF {
		t.Errorf("ReadU32 = %#x", v)
	}
	if v, _ := m.ReadU64(8); v != 0x0102030405060708 {
		t.Errorf("ReadU64 = %#x", v)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	m := newMemory(t, Config{})
	end := uint32(PageSize)

	checks := map[string]error{
		"Write":    m.Write(end-2, []byte{1, 2, 3, 4}),
		"WriteU8":  m.WriteU8(end, 1),
		"WriteU16": m.WriteU16(end-1, 1),
		"WriteU32": m.WriteU32(end-2, 1),
		"WriteU64": m.WriteU64(end-4, 1),
	}
	for name, err := range checks {
		if !errors.IsKind(err, errors.KindOutOfBounds) {
			t.Errorf("%s = %v, want out_of_bounds", name, err)
		}
	}

	if _, err := m.Read(end-6, 8); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("Read = %v", err)
	}
	if _, err := m.ReadU32(end-2); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("ReadU32 = %v", err)
	}
	if _, err := m.ReadU64(end); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("ReadU64 = %v", err)
	}

	// The partial write near the end must not have touched memory.
	tail, _ := m.Read(end-2, 2)
	if diff := cmp.Diff([]byte{0, 0}, tail); diff != "" {
		t.Fatalf("rejected write modified memory:\n%s", diff)
	}
}

func TestMemory_Grow(t *testing.T) {
	m := newMemory(t, Config{Pages: 1, MaxPages: 2})

	if err := m.WriteU8(PageSize, 1); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Fatalf("write in second page before grow = %v", err)
	}

	prev, err := m.Grow(1)
	if err != nil || prev != 1 {
		t.Fatalf("Grow(1) = %d, %v", prev, err)
	}
	if err := m.WriteU8(PageSize, 1); err != nil {
		t.Fatalf("write in second page after grow: %v", err)
	}

	if _, err := m.Grow(1); !errors.IsKind(err, errors.KindOutOfMemory) {
		t.Fatalf("Grow past max = %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Pages: 3, MaxPages: 2})
	if !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("New = %v, want invalid_input", err)
	}
}

func TestRegionOverLinearMemory(t *testing.T) {
	m := newMemory(t, Config{})
	password := bounds.NewRegion(m, "password", 16, 16)

	if err := password.Write([]byte("AAAAAAAAAAAAAAAAAAAA")); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Fatalf("overflowing region write = %v", err)
	}
	if v, _ := m.ReadU32(32); v != 0 {
		t.Fatalf("neighbouring field = %d, want 0", v)
	}
}
