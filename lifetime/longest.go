package lifetime

// LongestOf returns whichever of a and b is longer, b on a tie.
//
// The result is bound to the owners of both inputs, so reading it fails
// once either owner is released or mutated, even the one that was not
// selected. Both inputs must be valid when LongestOf is called.
func LongestOf(a, b TextSpan) TextSpan {
	pick, other := b, a
	if a.n > b.n {
		pick, other = a, b
	}

	out := pick
	out.label = "longest"
	out.leases = make([]lease, 0, len(pick.leases)+len(other.leases))
	out.leases = append(out.leases, pick.leases...)
	for _, l := range other.leases {
		if !hasLease(out.leases, l) {
			out.leases = append(out.leases, l)
		}
	}
	return out
}

func hasLease(ls []lease, l lease) bool {
	for _, x := range ls {
		if x.table == l.table && x.handle == l.handle && x.version == l.version {
			return true
		}
	}
	return false
}

// Process reads through a shared borrow and returns the length in bytes.
// The owner stays usable afterwards.
func Process(s TextSpan) (int, error) {
	text, err := s.Read()
	if err != nil {
		return 0, err
	}
	return len(text), nil
}
