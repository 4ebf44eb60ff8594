// Package resource provides the owner handle table behind memsafe's
// ownership and borrowing checks.
//
// Every owned value lives in a table slot and is reached through a Handle.
// A Handle carries the slot generation it was issued for: once the value is
// dropped or moved, the slot generation changes and every older handle stops
// resolving, even after the slot is reused by an unrelated value. This is the
// run-time substitute for a compiler that rejects use after free.
//
// # Ownership Operations
//
//	Insert    - create an owned value, get its handle
//	Transfer  - move: the value gets a new handle, the old one dies
//	Remove    - drop: the value is released, its Dropper runs
//	BorrowMut - take the exclusive borrow; shared views go stale
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	h := table.Insert(typeID, value)
//	v, ok := table.Get(h)
//
//	moved, ok := table.Transfer(h)
//	_, ok = table.Get(h)     // false: h was moved from
//	_, ok = table.Get(moved) // true
//
// # Versions
//
// Each live slot also has a version counter. Touch and BorrowMut bump it.
// A shared view records the version it was taken at and compares it on
// every read, so a view taken before a mutation can never observe the
// mutated bytes.
//
// # Observers
//
// Register observers to track ownership events:
//
//	table.Subscribe(observer) // EventCreated, EventMoved, EventDropped, ...
//
// # Typed Views
//
// Typed[T] restricts a table to one type ID:
//
//	users := resource.NewTyped[*User](table, userTypeID)
//	h := users.Insert(u)
//	u, ok := users.Get(h)
package resource
