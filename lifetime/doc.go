// Package lifetime checks borrowed text views against the life of their
// owners at run time.
//
// Owned text lives in a Scope. Borrowing it yields a TextSpan that records
// the owner's handle and version. Every read of the span verifies both: a
// span whose owner was released, moved or mutated since the borrow fails
// with a structured fault instead of returning the bytes.
//
//	outer := lifetime.NewScope("main")
//	s1, _ := outer.NewText("string1", "long string is long")
//
//	inner := outer.Child("block")
//	s2, _ := inner.NewText("string2", "xyz")
//
//	a, _ := s1.Borrow()
//	b, _ := s2.Borrow()
//	result := lifetime.LongestOf(a, b)
//
//	inner.End()
//	_, err := result.Read() // dangling: "string2" does not live long enough
//
// # Spans Bound to Several Owners
//
// LongestOf returns one of its inputs, but the caller cannot know which
// without reading. The result therefore carries the leases of both inputs
// and is valid only while both owners are. This mirrors a result lifetime
// that is the intersection of both argument lifetimes.
//
// # Moves
//
// MoveTo and Concat transfer ownership. The previous owner becomes a
// moved-from sentinel; any use of it is a use_after_move fault.
package lifetime
