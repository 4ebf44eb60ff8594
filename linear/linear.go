// Package linear backs memsafe.Memory with a real WebAssembly linear memory
// instantiated by wazero. Every access outside the current memory size is
// refused by the runtime and surfaces as an out_of_bounds fault.
package linear

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/memsafe"
	"github.com/wippyai/memsafe/errors"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

const exportName = "memory"

// Config holds configuration for memory creation
type Config struct {
	// Pages is the initial size in 64KB pages. 0 means 1.
	Pages uint32

	// MaxPages caps growth. 0 means the runtime default (65536 pages = 4GB).
	MaxPages uint32
}

// Memory is a wazero-backed linear memory.
type Memory struct {
	runtime wazero.Runtime
	mem     api.Memory
}

var (
	_ memsafe.Memory      = (*Memory)(nil)
	_ memsafe.MemorySizer = (*Memory)(nil)
)

// New instantiates a module exporting one memory and wraps that memory.
func New(ctx context.Context, cfg Config) (*Memory, error) {
	if cfg.Pages == 0 {
		cfg.Pages = 1
	}
	if cfg.MaxPages > 0 && cfg.Pages > cfg.MaxPages {
		return nil, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("initial pages %d exceed max pages %d", cfg.Pages, cfg.MaxPages))
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MaxPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MaxPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := runtime.Instantiate(ctx, encodeModule(cfg.Pages, cfg.MaxPages))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindAllocation, err, "instantiate linear memory")
	}

	mem := mod.ExportedMemory(exportName)
	if mem == nil {
		_ = runtime.Close(ctx)
		return nil, errors.NotFound(errors.PhaseRuntime, "export", exportName)
	}

	Logger().Debug("linear memory ready",
		zap.Uint32("pages", cfg.Pages),
		zap.Uint32("max_pages", cfg.MaxPages),
		zap.Uint32("bytes", mem.Size()),
	)
	return &Memory{runtime: runtime, mem: mem}, nil
}

// Close releases the runtime and the memory.
func (m *Memory) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

func (m *Memory) outOfBounds(offset uint32, length uint64) error {
	return errors.RangeOutOfBounds(errors.PhaseBounds, "linear memory", uint64(offset), length, uint64(m.mem.Size()))
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, uint64(length))
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write stores data at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return m.outOfBounds(offset, uint64(len(data)))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	return v, nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return m.outOfBounds(offset, 1)
	}
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return m.outOfBounds(offset, 2)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return m.outOfBounds(offset, 4)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}

// Size returns the current size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Pages returns the current size in pages.
func (m *Memory) Pages() uint32 {
	return m.mem.Size() / PageSize
}

// Grow adds delta pages and returns the previous page count.
func (m *Memory) Grow(delta uint32) (uint32, error) {
	prev, ok := m.mem.Grow(delta)
	if !ok {
		Logger().Warn("linear memory grow refused",
			zap.Uint32("delta", delta),
			zap.Uint32("pages", m.Pages()),
		)
		return 0, errors.New(errors.PhaseAlloc, errors.KindOutOfMemory).
			Subject("linear memory").
			Value(delta).
			Detail("cannot grow by %d pages from %d", delta, m.Pages()).
			Build()
	}
	return prev, nil
}
