package lifetime

import (
	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/resource"
)

// lease binds a span to one owner at the version it was borrowed at.
type lease struct {
	table   *resource.UnifiedTable
	handle  resource.Handle
	version uint32
	owner   string
}

func (l lease) check(label string) error {
	v, ok := l.table.Version(l.handle)
	if !ok {
		return errors.Dangling(label, l.owner)
	}
	if v != l.version {
		return errors.StaleBorrow(label, l.owner)
	}
	return nil
}

// TextSpan is a read-only view of text owned elsewhere.
// The zero value is an empty static span.
type TextSpan struct {
	src    *lease
	static string
	label  string
	leases []lease
	off    int
	n      int
}

// Static returns a span over a literal that outlives every scope.
func Static(s string) TextSpan {
	return TextSpan{static: s, label: "static", n: len(s)}
}

// Named returns a copy of s reported as label in faults.
func (s TextSpan) Named(label string) TextSpan {
	s.label = label
	return s
}

// Label returns the name used for s in faults.
func (s TextSpan) Label() string {
	return s.label
}

// Len returns the span length in bytes. Len never touches the owner.
func (s TextSpan) Len() int {
	return s.n
}

// Check verifies that every owner the span is bound to is still alive and
// unchanged since the borrow.
func (s TextSpan) Check() error {
	for _, l := range s.leases {
		if err := l.check(s.label); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the viewed text. Stale spans fail before any byte is read.
func (s TextSpan) Read() (string, error) {
	if err := s.Check(); err != nil {
		return "", err
	}
	if s.src == nil {
		return s.static[s.off : s.off+s.n], nil
	}
	v, ok := s.src.table.Get(s.src.handle)
	if !ok {
		return "", errors.Dangling(s.label, s.src.owner)
	}
	return string(v.(*textCell).buf[s.off : s.off+s.n]), nil
}

// Slice returns the sub-span [from, to) bound to the same owners.
func (s TextSpan) Slice(from, to int) (TextSpan, error) {
	if from < 0 || from > s.n {
		return TextSpan{}, errors.OutOfBounds(errors.PhaseBounds, []string{s.label}, from, s.n)
	}
	if to < from || to > s.n {
		return TextSpan{}, errors.OutOfBounds(errors.PhaseBounds, []string{s.label}, to, s.n)
	}
	out := s
	out.off = s.off + from
	out.n = to - from
	return out, nil
}

// Owners returns the names of the owners s is bound to.
func (s TextSpan) Owners() []string {
	names := make([]string, 0, len(s.leases))
	for _, l := range s.leases {
		names = append(names, l.owner)
	}
	return names
}
