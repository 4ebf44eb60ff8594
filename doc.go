// Package memsafe demonstrates three memory-safety guarantees in Go:
// lifetime-checked references, bounds-checked and growable buffers, and
// use-after-free prevention through ownership and borrowing.
//
// Go has no borrow checker, so the contracts are enforced at the moment of
// use: every borrowed view carries the handle and version of the value it
// looks at, and reading it after the owner is released, moved or mutated
// fails with a structured fault instead of returning stale bytes.
//
// # Architecture Overview
//
//	memsafe/           Root package with the Memory, MemorySizer and Allocator interfaces
//	├── errors/        Structured fault types (phase + kind)
//	├── resource/      Generation-checked owner handle table with borrow tracking
//	├── lifetime/      Scopes, owned text, text spans and LongestOf
//	├── bounds/        FixedBuffer, CopyBounded/CopyExact and fixed-size regions
//	├── memory/        Simulated stack/heap memory with snapshots and optional GC
//	├── linear/        WebAssembly linear memory backed by wazero
//	├── session/       Login sessions over simulated memory without raw pointers
//	├── server/        HTTP front end for the session store
//	├── demo/          Narrated demonstrations run by the CLI
//	├── config/        YAML configuration
//	└── cmd/memsafe/   Command line entry point
//
// # Quick Start
//
// Pick the longer of two borrowed strings:
//
//	root := lifetime.NewScope("main")
//	defer root.End()
//
//	s1, _ := root.NewText("string1", "short")
//	s2, _ := root.NewText("string2", "long string")
//
//	a, _ := s1.Borrow()
//	b, _ := s2.Borrow()
//
//	result := lifetime.LongestOf(a, b)
//	text, err := result.Read() // "long string", nil
//
// Once either owner is released, result.Read returns a dangling fault.
//
// Copy only what fits:
//
//	dest := make([]int, 5)
//	n := bounds.CopyBounded(dest, []int{1, 2, 3, 4, 5, 6, 7, 8}) // n == 5
//
// # Thread Safety
//
// The handle table is safe for concurrent use. Scopes, owned values and
// simulated memories are meant for a single goroutine, the same way the
// values they model have a single owner.
package memsafe
