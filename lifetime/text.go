package lifetime

import (
	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/resource"
)

type textCell struct {
	buf []byte
}

// OwnedText is growable text owned by a Scope.
// An OwnedText must not be used from several goroutines at once.
type OwnedText struct {
	scope   *Scope
	name    string
	handle  resource.Handle
	moved   bool
	dropped bool
}

// Name returns the name the text was declared with.
func (t *OwnedText) Name() string {
	return t.name
}

// Moved reports whether ownership was transferred away from t.
func (t *OwnedText) Moved() bool {
	return t.moved
}

// cell resolves the live storage behind t.
func (t *OwnedText) cell() (*textCell, error) {
	if t.moved {
		return nil, errors.UseAfterMove(t.name)
	}
	v, ok := t.scope.table.GetTyped(t.handle, textTypeID)
	if !ok {
		return nil, errors.UseAfterFree(errors.PhaseBorrow, t.name)
	}
	return v.(*textCell), nil
}

// shared resolves t for a read through the owner, which an outstanding
// exclusive borrow forbids.
func (t *OwnedText) shared() (*textCell, error) {
	c, err := t.cell()
	if err != nil {
		return nil, err
	}
	if t.scope.table.Backend().MutBorrowed(t.handle) {
		return nil, errors.BorrowConflict(t.name, "cannot use while mutably borrowed")
	}
	return c, nil
}

// Value returns a copy of the text.
func (t *OwnedText) Value() (string, error) {
	c, err := t.shared()
	if err != nil {
		return "", err
	}
	return string(c.buf), nil
}

// Len returns the length in bytes, or 0 if t cannot be used.
func (t *OwnedText) Len() int {
	c, err := t.cell()
	if err != nil {
		return 0
	}
	return len(c.buf)
}

// Cap returns the allocated capacity in bytes, or 0 if t cannot be used.
func (t *OwnedText) Cap() int {
	c, err := t.cell()
	if err != nil {
		return 0
	}
	return cap(c.buf)
}

// PushStr appends s, growing the storage as needed.
// Spans borrowed before the call go stale.
func (t *OwnedText) PushStr(s string) error {
	c, err := t.shared()
	if err != nil {
		return err
	}
	c.buf = append(c.buf, s...)
	t.scope.table.Touch(t.handle)
	return nil
}

// Concat consumes t and returns a new owner holding t's text followed by
// suffix. t is moved-from afterwards.
func (t *OwnedText) Concat(suffix string) (*OwnedText, error) {
	c, err := t.shared()
	if err != nil {
		return nil, err
	}

	next, ok := t.scope.table.Transfer(t.handle)
	if !ok {
		return nil, errors.BorrowConflict(t.name, "cannot move while borrowed")
	}
	t.moved = true

	c.buf = append(c.buf, suffix...)
	out := &OwnedText{scope: t.scope, name: t.name, handle: next}

	t.scope.mu.Lock()
	t.scope.owned = append(t.scope.owned, out)
	t.scope.mu.Unlock()
	return out, nil
}

// MoveTo transfers ownership into dst under a new name. t is moved-from
// afterwards and every span borrowed from it dangles.
func (t *OwnedText) MoveTo(dst *Scope, name string) (*OwnedText, error) {
	c, err := t.shared()
	if err != nil {
		return nil, err
	}
	if dst.Ended() {
		return nil, errors.ScopeEnded(dst.name)
	}

	if dst.table == t.scope.table {
		next, ok := t.scope.table.Transfer(t.handle)
		if !ok {
			return nil, errors.BorrowConflict(t.name, "cannot move while borrowed")
		}
		t.moved = true
		out := &OwnedText{scope: dst, name: name, handle: next}
		dst.mu.Lock()
		dst.owned = append(dst.owned, out)
		dst.mu.Unlock()
		return out, nil
	}

	if _, ok := t.scope.table.Remove(t.handle); !ok {
		return nil, errors.BorrowConflict(t.name, "cannot move while borrowed")
	}
	t.moved = true
	return dst.adopt(name, c)
}

// Borrow returns a shared view of the whole text.
func (t *OwnedText) Borrow() (TextSpan, error) {
	c, err := t.shared()
	if err != nil {
		return TextSpan{}, err
	}
	v, _ := t.scope.table.Version(t.handle)
	l := lease{
		table:   t.scope.table,
		handle:  t.handle,
		version: v,
		owner:   t.name,
	}
	return TextSpan{
		label:  "&" + t.name,
		src:    &l,
		leases: []lease{l},
		n:      len(c.buf),
	}, nil
}

// BorrowMut takes the exclusive borrow of t. Until it is released, t
// cannot be read, borrowed, moved or dropped, and every earlier span is stale.
func (t *OwnedText) BorrowMut() (*MutText, error) {
	if _, err := t.cell(); err != nil {
		return nil, err
	}
	if !t.scope.table.BorrowMut(t.handle) {
		return nil, errors.BorrowConflict(t.name, "already mutably borrowed")
	}
	return &MutText{owner: t}, nil
}

// Drop releases t before its scope ends.
func (t *OwnedText) Drop() error {
	if t.moved {
		return errors.UseAfterMove(t.name)
	}
	if t.scope.table.Backend().MutBorrowed(t.handle) {
		return errors.BorrowConflict(t.name, "cannot drop while mutably borrowed")
	}
	if _, ok := t.scope.table.Remove(t.handle); !ok {
		return errors.UseAfterFree(errors.PhaseAlloc, t.name)
	}
	t.dropped = true
	return nil
}

// MutText is the exclusive borrow of an OwnedText.
type MutText struct {
	owner    *OwnedText
	released bool
}

func (m *MutText) cell() (*textCell, error) {
	if m.released {
		return nil, errors.UseAfterFree(errors.PhaseBorrow, "&mut "+m.owner.name)
	}
	return m.owner.cell()
}

// PushStr appends s through the exclusive borrow.
func (m *MutText) PushStr(s string) error {
	c, err := m.cell()
	if err != nil {
		return err
	}
	c.buf = append(c.buf, s...)
	m.owner.scope.table.Touch(m.owner.handle)
	return nil
}

// Value returns a copy of the text through the exclusive borrow.
func (m *MutText) Value() (string, error) {
	c, err := m.cell()
	if err != nil {
		return "", err
	}
	return string(c.buf), nil
}

// Release gives the borrow back to the owner.
func (m *MutText) Release() error {
	if m.released {
		return errors.UseAfterFree(errors.PhaseBorrow, "&mut "+m.owner.name)
	}
	m.released = true
	if !m.owner.scope.table.ReturnMut(m.owner.handle) {
		return errors.UseAfterFree(errors.PhaseBorrow, m.owner.name)
	}
	return nil
}
